package navigator

import "github.com/menta2k/vision-overlay/pkg/types"

// Navigator is a wrapping cursor over detected faces.
// The zero value is an empty navigator and is ready to use.
// No synchronization: it is only touched from the UI loop.
type Navigator struct {
	detections []types.Detection
	index      int
}

// Reset replaces the faces and moves the cursor to the first one.
func (n *Navigator) Reset(detections []types.Detection) {
	n.detections = append([]types.Detection(nil), detections...)
	n.index = 0
}

// Next advances the cursor, wrapping to the first face.
func (n *Navigator) Next() {
	if len(n.detections) == 0 {
		return
	}
	n.index = (n.index + 1) % len(n.detections)
}

// Previous moves the cursor back, wrapping to the last face.
func (n *Navigator) Previous() {
	if len(n.detections) == 0 {
		return
	}
	n.index = (n.index - 1 + len(n.detections)) % len(n.detections)
}

// Index returns the cursor position (0 when empty).
func (n *Navigator) Index() int { return n.index }

// Len returns the number of faces.
func (n *Navigator) Len() int { return len(n.detections) }

// Current returns the rectangle of the face under the cursor.
func (n *Navigator) Current() (*types.NormalizedRect, bool) {
	d, ok := n.CurrentDetection()
	if !ok || d.Rect == nil {
		return nil, false
	}
	r := *d.Rect
	return &r, true
}

// CurrentDetection returns the face under the cursor.
func (n *Navigator) CurrentDetection() (*types.Detection, bool) {
	if len(n.detections) == 0 {
		return nil, false
	}
	d := n.detections[n.index]
	return &d, true
}
