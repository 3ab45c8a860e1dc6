package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type capturedRequest struct {
	Path string
	Body map[string]any
}

func fakeGemini(t *testing.T, status int, text string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		captured = append(captured, capturedRequest{Path: r.URL.Path, Body: body})
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"code": status, "message": "boom"},
			})
			return
		}
		payload := map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": text}},
					},
				},
			},
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	today := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	client, err := NewWithHTTPClient(context.Background(), server.Client(), Config{
		Model:    "demo-model",
		Endpoint: server.URL + "/",
		Timeout:  5 * time.Second,
	}, WithClock(func() time.Time { return today }))
	if err != nil {
		t.Fatalf("NewWithHTTPClient returned error: %v", err)
	}
	return client
}

// userText digs the first text part out of the captured request contents.
func userText(t *testing.T, body map[string]any) []string {
	t.Helper()
	contents, _ := body["contents"].([]any)
	var out []string
	for _, c := range contents {
		parts, _ := c.(map[string]any)["parts"].([]any)
		for _, p := range parts {
			if text, ok := p.(map[string]any)["text"].(string); ok {
				out = append(out, text)
			}
		}
	}
	return out
}

func TestConvertTextResolvesAgainstToday(t *testing.T) {
	server, captured := fakeGemini(t, http.StatusOK,
		`[{"id":"1","text":"Buy milk","completed":false,"dueDate":"2024-01-02"}]`)
	client := newTestClient(t, server)

	tasks, err := client.ConvertText(context.Background(), "buy milk tomorrow")
	if err != nil {
		t.Fatalf("ConvertText returned error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(tasks))
	}
	if got := tasks[0].Due.Time.Format("2006-01-02"); !tasks[0].Due.Valid || got != "2024-01-02" {
		t.Fatalf("unexpected due date %v", tasks[0].Due)
	}
	if tasks[0].Completed {
		t.Fatal("new tasks must start open")
	}

	if len(*captured) != 1 {
		t.Fatalf("expected one request, got %d", len(*captured))
	}
	req := (*captured)[0]
	if req.Path != "/v1beta/models/demo-model:generateContent" {
		t.Fatalf("unexpected path %s", req.Path)
	}
	texts := userText(t, req.Body)
	if len(texts) != 1 || !strings.Contains(texts[0], "buy milk tomorrow") || !strings.Contains(texts[0], "2024-01-01") {
		t.Fatalf("prompt must carry input and today's date, got %q", texts)
	}
	gen, _ := req.Body["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Fatalf("expected json response mime type, got %v", gen["responseMimeType"])
	}
	if _, ok := req.Body["systemInstruction"]; !ok {
		t.Fatal("expected a system instruction")
	}
}

func TestConvertTextMalformedIsEmpty(t *testing.T) {
	server, _ := fakeGemini(t, http.StatusOK, `Sure! Here is your list: buy milk`)
	client := newTestClient(t, server)

	tasks, err := client.ConvertText(context.Background(), "buy milk")
	if err != nil {
		t.Fatalf("malformed payload must not be an error, got %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %+v", tasks)
	}
}

func TestConvertTextTransportFailure(t *testing.T) {
	server, _ := fakeGemini(t, http.StatusBadRequest, "")
	client := newTestClient(t, server)

	if _, err := client.ConvertText(context.Background(), "buy milk"); err == nil {
		t.Fatal("expected transport failure to be reported")
	}
}

func TestConvertTextSkipsEmptyPrompt(t *testing.T) {
	server, captured := fakeGemini(t, http.StatusOK, `[]`)
	client := newTestClient(t, server)

	tasks, err := client.ConvertText(context.Background(), "   ")
	if err != nil || len(tasks) != 0 {
		t.Fatalf("unexpected result %v %v", tasks, err)
	}
	if len(*captured) != 0 {
		t.Fatal("empty prompt must not reach the model")
	}
}

func TestConvertImageSendsInlineData(t *testing.T) {
	server, captured := fakeGemini(t, http.StatusOK,
		"```json\n[{\"id\":\"p1\",\"text\":\"Bake sale\",\"completed\":false,\"dueDate\":\"2024-02-10\"}]\n```")
	client := newTestClient(t, server)
	image := []byte{0x89, 'P', 'N', 'G'}

	tasks, err := client.ConvertImage(context.Background(), image, "image/png")
	if err != nil {
		t.Fatalf("ConvertImage returned error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Text != "Bake sale" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}

	contents, _ := (*captured)[0].Body["contents"].([]any)
	parts, _ := contents[0].(map[string]any)["parts"].([]any)
	inline, _ := parts[0].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != "image/png" {
		t.Fatalf("unexpected mime type %v", inline["mimeType"])
	}
	if inline["data"] != base64.StdEncoding.EncodeToString(image) {
		t.Fatalf("unexpected inline data %v", inline["data"])
	}
	texts := userText(t, (*captured)[0].Body)
	if len(texts) != 1 || !strings.Contains(texts[0], "2024-01-01") {
		t.Fatalf("image prompt must carry today's date, got %q", texts)
	}
}

func TestCommentaryTrimsText(t *testing.T) {
	server, _ := fakeGemini(t, http.StatusOK, "  About time you got to that!  \n")
	client := newTestClient(t, server)

	if got := client.Commentary(context.Background(), "buy milk"); got != "About time you got to that!" {
		t.Fatalf("unexpected commentary %q", got)
	}
}

func TestCommentaryFallback(t *testing.T) {
	server, _ := fakeGemini(t, http.StatusBadRequest, "")
	client := newTestClient(t, server)

	if got := client.Commentary(context.Background(), "buy milk"); got != FallbackCommentary {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestModelResource(t *testing.T) {
	if got := modelResource("gemini-2.5-flash"); got != "models/gemini-2.5-flash" {
		t.Fatalf("unexpected resource %q", got)
	}
	if got := modelResource("models/custom"); got != "models/custom" {
		t.Fatalf("unexpected resource %q", got)
	}
}
