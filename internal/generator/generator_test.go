package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"studycore/internal/config"
)

func chatCompletionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(config.GeneratorConfig{BaseURL: ts.URL, APIKey: "test-key", Model: "test-model"})
}

func TestCompleteReturnsMessageContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(chatCompletionResponse("the answer"))
		w.Write(b)
	})
	got, err := c.Complete(context.Background(), "system", "user", 0.25, 500)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "the answer" {
		t.Fatalf("got %q", got)
	}
}

func TestCompleteJSONSetsResponseFormat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		rf, ok := body["response_format"].(map[string]any)
		if !ok || rf["type"] != "json_object" {
			t.Fatalf("expected response_format json_object, got %v", body["response_format"])
		}
		b, _ := json.Marshal(chatCompletionResponse(`{"ok":true}`))
		w.Write(b)
	})
	got, err := c.CompleteJSON(context.Background(), "system", "user", 0.0, 500)
	if err != nil {
		t.Fatalf("CompleteJSON error: %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("got %q", got)
	}
}

func TestCompleteMultimodalAttachesImagesAtLowDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		messages, _ := body["messages"].([]any)
		var userParts []any
		for _, m := range messages {
			mm := m.(map[string]any)
			if mm["role"] == "user" {
				userParts, _ = mm["content"].([]any)
			}
		}
		if len(userParts) != 2 {
			t.Fatalf("expected text + 1 image part, got %d", len(userParts))
		}
		imgPart := userParts[1].(map[string]any)
		if imgPart["type"] != "image_url" {
			t.Fatalf("expected image_url part, got %v", imgPart["type"])
		}
		imageURL := imgPart["image_url"].(map[string]any)
		if imageURL["detail"] != "low" {
			t.Fatalf("expected detail low, got %v", imageURL["detail"])
		}
		if !strings.Contains(imageURL["url"].(string), "example.com") {
			t.Fatalf("expected image url to carry through, got %v", imageURL["url"])
		}
		b, _ := json.Marshal(chatCompletionResponse("described"))
		w.Write(b)
	})
	got, err := c.CompleteMultimodal(context.Background(), "system", "describe this", []ImageRef{{URL: "https://example.com/img.png"}}, 0.25, 500)
	if err != nil {
		t.Fatalf("CompleteMultimodal error: %v", err)
	}
	if got != "described" {
		t.Fatalf("got %q", got)
	}
}
