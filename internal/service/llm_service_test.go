package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"survey_analytics_backend/internal/config"
	"survey_analytics_backend/internal/util"
)

func chatCompletionHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"` + content + `"}}]}`))
	}
}

func TestCompleteFallsThroughToNextProvider(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer failing.Close()
	working := httptest.NewServer(chatCompletionHandler("second provider answer"))
	defer working.Close()

	svc := NewLLMService(config.AIConfig{
		TimeoutSeconds: 5,
		Providers: []config.AIProviderConfig{
			{Name: "gemini", BaseURL: failing.URL, APIKey: "k1", Model: "m1"},
			{Name: "groq", BaseURL: working.URL, APIKey: "k2", Model: "m2"},
		},
	})

	content, provider, err := svc.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if provider != "groq" {
		t.Fatalf("provider = %q, want groq", provider)
	}
	if content != "second provider answer" {
		t.Fatalf("content = %q", content)
	}
}

func TestCompleteAllProvidersFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer failing.Close()

	svc := NewLLMService(config.AIConfig{
		TimeoutSeconds: 5,
		Providers: []config.AIProviderConfig{
			{Name: "gemini", BaseURL: failing.URL, APIKey: "k1", Model: "m1"},
			{Name: "groq", BaseURL: failing.URL, APIKey: "k2", Model: "m2"},
		},
	})

	_, _, err := svc.Complete(context.Background(), "sys", "user")
	if !errors.Is(err, util.ErrAllProvidersFailed) {
		t.Fatalf("err = %v, want ErrAllProvidersFailed", err)
	}
}

func TestCompleteTimeoutCountsAsFailure(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer slow.Close()

	svc := NewLLMService(config.AIConfig{
		TimeoutSeconds: 1,
		Providers: []config.AIProviderConfig{
			{Name: "gemini", BaseURL: slow.URL, APIKey: "k1", Model: "m1"},
		},
	})

	_, _, err := svc.Complete(context.Background(), "sys", "user")
	if !errors.Is(err, util.ErrAllProvidersFailed) {
		t.Fatalf("err = %v, want ErrAllProvidersFailed on timeout", err)
	}
}

func TestCompleteSkipsProvidersWithoutKey(t *testing.T) {
	working := httptest.NewServer(chatCompletionHandler("answer"))
	defer working.Close()

	svc := NewLLMService(config.AIConfig{
		TimeoutSeconds: 5,
		Providers: []config.AIProviderConfig{
			{Name: "gemini", BaseURL: "http://127.0.0.1:1", APIKey: "", Model: "m1"},
			{Name: "groq", BaseURL: working.URL, APIKey: "k2", Model: "m2"},
		},
	})

	_, provider, err := svc.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if provider != "groq" {
		t.Fatalf("provider = %q, want groq (keyless provider skipped)", provider)
	}
}

func TestCompleteWithReordersChain(t *testing.T) {
	first := httptest.NewServer(chatCompletionHandler("from gemini"))
	defer first.Close()
	second := httptest.NewServer(chatCompletionHandler("from groq"))
	defer second.Close()

	svc := NewLLMService(config.AIConfig{
		TimeoutSeconds: 5,
		Providers: []config.AIProviderConfig{
			{Name: "gemini", BaseURL: first.URL, APIKey: "k1", Model: "m1"},
			{Name: "groq", BaseURL: second.URL, APIKey: "k2", Model: "m2"},
		},
	})

	content, provider, err := svc.CompleteWith(context.Background(), "groq", "sys", "user")
	if err != nil {
		t.Fatalf("CompleteWith: %v", err)
	}
	if provider != "groq" || content != "from groq" {
		t.Fatalf("got %q from %q, want groq first", content, provider)
	}
}

func TestChatSendsFullMessageList(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	svc := NewLLMService(config.AIConfig{
		TimeoutSeconds: 5,
		Providers: []config.AIProviderConfig{
			{Name: "gemini", BaseURL: server.URL, APIKey: "k1", Model: "m1"},
		},
	})

	messages := []ChatMessage{
		{Role: "system", Content: "context"},
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "follow-up"},
	}
	if _, _, err := svc.Chat(context.Background(), "", messages); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(got.Messages) != len(messages) {
		t.Fatalf("provider received %d messages, want %d", len(got.Messages), len(messages))
	}
	for i := range messages {
		if got.Messages[i] != messages[i] {
			t.Fatalf("message[%d] = %+v, want %+v", i, got.Messages[i], messages[i])
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  ```json\n{\"a\":1}\n```\n    ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := StripCodeFence(tc.in); got != tc.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
