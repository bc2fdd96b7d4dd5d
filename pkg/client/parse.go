package client

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/vision-overlay/pkg/types"
)

var reTrailing = regexp.MustCompile(`,(\s*[}\]])`)

type classificationPayload struct {
	Classifications []classificationEntry `json:"classifications"`
}

type classificationEntry struct {
	Label      string   `json:"label"`
	Confidence *float64 `json:"confidence"`
}

// ParseClassifications extracts labelled scores from a model reply of the
// form {"classifications":[{"label":"cat","confidence":0.9}]}. A bare JSON
// array of entries is accepted too.
func ParseClassifications(raw string) ([]types.Detection, error) {
	raw = SanitizeModelJSON(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty model response")
	}

	var entries []classificationEntry
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, fmt.Errorf("failed to parse classifications: %w", err)
		}
	} else {
		var payload classificationPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, fmt.Errorf("failed to parse classifications: %w", err)
		}
		entries = payload.Classifications
	}

	out := make([]types.Detection, 0, len(entries))
	for _, e := range entries {
		label := strings.ToLower(strings.TrimSpace(e.Label))
		if label == "" && e.Confidence == nil {
			continue
		}
		d := types.Detection{Label: label}
		if e.Confidence != nil {
			c := clamp(*e.Confidence, 0, 1)
			d.Confidence = &c
		}
		out = append(out, d)
	}
	return out, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// a model's JSON reply and keeps only the outermost object or array.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = stripComments(raw)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	open, closing := "{", "}"
	if a, o := strings.Index(raw, "["), strings.Index(raw, "{"); a >= 0 && (o < 0 || a < o) {
		open, closing = "[", "]"
	}
	if start := strings.Index(raw, open); start >= 0 {
		if end := strings.LastIndex(raw, closing); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// stripComments drops // and /* */ comments that sit outside JSON string
// literals.
func stripComments(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	inString, escaped := false, false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(raw) && raw[i+1] == '/':
			for i < len(raw) && raw[i] != '\n' {
				i++
			}
			if i < len(raw) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(raw) && raw[i+1] == '*':
			end := strings.Index(raw[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ClassificationPrompt asks the model to score the image against labels.
func ClassificationPrompt(labels []string) string {
	var b strings.Builder
	b.WriteString("You are an image classifier.\n\n")
	if len(labels) > 0 {
		fmt.Fprintf(&b, "Allowed labels: %s.\n", strings.Join(labels, ", "))
	}
	b.WriteString(`Return JSON only:
{"classifications": [{"label": "string", "confidence": 0.0}]}

RULES
- One entry per allowed label, confidence in [0,1].
- Labels lowercase, exactly as given.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`)
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
