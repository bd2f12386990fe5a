package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(baseURL string) *Client {
	c := NewClientWithBaseURL("test-key", baseURL)
	c.retryConfig.InitialDelay = time.Millisecond
	c.retryConfig.MaxDelay = 5 * time.Millisecond
	return c
}

func completionResponse(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestChatCompletion(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(completionResponse(`{"recommendations": []}`)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	content, err := client.ChatCompletion(context.Background(), "gpt-4o-mini", []ChatMessage{
		{Role: "system", Content: "system"},
		{Role: "user", Content: "user"},
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if content != `{"recommendations": []}` {
		t.Errorf("content = %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", gotBody["model"])
	}
	format, _ := gotBody["response_format"].(map[string]interface{})
	if format["type"] != "json_object" {
		t.Errorf("response_format = %v", gotBody["response_format"])
	}
}

func TestChatCompletionRetriesRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "rate limit", "type": "rate_limit_error"}}`))
			return
		}
		w.Write([]byte(completionResponse("ok")))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	content, err := client.ChatCompletion(context.Background(), "gpt-4o-mini", nil)
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if content != "ok" {
		t.Errorf("content = %q", content)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestChatCompletionRetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(completionResponse("ok")))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.ChatCompletion(context.Background(), "gpt-4o-mini", nil); err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestChatCompletionQuotaExceededNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"message": "You exceeded your current quota", "type": "insufficient_quota"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ChatCompletion(context.Background(), "gpt-4o-mini", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("quota errors must not retry, got %d calls", calls)
	}
}

func TestChatCompletionClientErrorNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid model", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.ChatCompletion(context.Background(), "bad-model", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("client errors must not retry, got %d calls", calls)
	}
}

func TestChatCompletionNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ChatCompletion(context.Background(), "gpt-4o-mini", nil)
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("error = %v", err)
	}
}

func TestChatCompletionContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(srv.URL)
	if _, err := client.ChatCompletion(ctx, "gpt-4o-mini", nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
