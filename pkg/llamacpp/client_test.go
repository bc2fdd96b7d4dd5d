package llamacpp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, content interface{}, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 {
			t.Errorf("expected 1 message, got %d", len(req.Messages))
		}

		if status != http.StatusOK {
			http.Error(w, "boom", status)
			return
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: content}}},
		})
	}))
}

func TestClassifyStringContent(t *testing.T) {
	srv := newTestServer(t, `{"classifications":[{"label":"dog","confidence":0.9}]}`, http.StatusOK)
	defer srv.Close()

	c, _ := NewClient(srv.URL + "/")
	got, err := c.Classify(context.Background(), "m", "p", "aGk=")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(got) != 1 || got[0].Label != "dog" || got[0].Score() != 0.9 {
		t.Errorf("unexpected detections %+v", got)
	}
}

func TestClassifyPartsContent(t *testing.T) {
	parts := []map[string]string{{"type": "text", "text": `[{"label":"cat","confidence":0.6}]`}}
	srv := newTestServer(t, parts, http.StatusOK)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	got, err := c.Classify(context.Background(), "m", "p", "")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(got) != 1 || got[0].Label != "cat" {
		t.Errorf("unexpected detections %+v", got)
	}
}

func TestClassifyServerError(t *testing.T) {
	srv := newTestServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.Classify(context.Background(), "m", "p", "")
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestSimpleQueryEmpty(t *testing.T) {
	srv := newTestServer(t, "", http.StatusOK)
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	if _, err := c.SimpleQuery(context.Background(), "m", "p", ""); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestNewClientDefault(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatal(err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %s", c.baseURL)
	}
}
