package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/logger"
)

func TestBatchConcurrencyLimit(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{total: 0, want: 1},
		{total: 1, want: 1},
		{total: 2, want: 2},
		{total: 4, want: 4},
		{total: 10, want: 4},
	}
	for _, tt := range tests {
		if got := batchConcurrencyLimit(tt.total); got != tt.want {
			t.Fatalf("batchConcurrencyLimit(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestParseReview(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.Suggestion
	}{
		{
			name: "plain",
			text: `{"matches":[{"blockId":"b1","taskId":"t1","reason":"AP work"}]}`,
			want: []domain.Suggestion{{BlockID: "b1", TaskID: "t1", Reason: "AP work"}},
		},
		{
			name: "fenced",
			text: "```json\n{\"matches\":[{\"blockId\":\"b1\",\"taskId\":\"GENERAL\",\"client\":\"Acme Corp\",\"reason\":\"client email\"}]}\n```",
			want: []domain.Suggestion{{BlockID: "b1", TaskID: "GENERAL", Client: "Acme Corp", Reason: "client email"}},
		},
		{
			name: "wrapped in prose with legacy field",
			text: `Here you go: {"matches":[{"blockId":"b2","suggestedTaskId":"t9","reason":"x"}]} hope this helps`,
			want: []domain.Suggestion{{BlockID: "b2", TaskID: "t9", Reason: "x"}},
		},
		{
			name: "missing block id dropped",
			text: `{"matches":[{"taskId":"t1"},{"blockId":"b3","taskId":"SKIP","reason":"personal"}]}`,
			want: []domain.Suggestion{{BlockID: "b3", TaskID: "SKIP", Reason: "personal"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReview(tt.text)
			if err != nil {
				t.Fatalf("parseReview: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d suggestions, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("suggestion %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseReviewRejectsGarbage(t *testing.T) {
	if _, err := parseReview("I could not decide."); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

func TestBuildPrompts(t *testing.T) {
	blocks := []domain.Block{{
		ID:              "b1",
		Day:             "2026-02-09",
		StartUTC:        time.Date(2026, 2, 9, 14, 30, 0, 0, time.UTC),
		DurationMinutes: 12,
		App:             "Excel",
		Title:           "Q1 forecast",
		Category:        domain.CategoryDataWork,
	}}
	tasks := []domain.Task{{ID: "t1", Name: "Budget Import", ParentName: "Finance", ClientName: "Acme Corp", ClientShortCode: "ACM"}}

	system, user, err := buildPrompts(blocks, tasks)
	if err != nil {
		t.Fatalf("buildPrompts: %v", err)
	}
	if !strings.Contains(system, `"matches"`) {
		t.Fatalf("system prompt missing output contract: %s", system)
	}
	for _, want := range []string{`"id":"b1"`, `"start":"14:30"`, `"title":"Q1 forecast"`, `"name":"Budget Import"`, `"code":"ACM"`} {
		if !strings.Contains(user, want) {
			t.Fatalf("user prompt missing %s: %s", want, user)
		}
	}
}

func TestReviewDisabled(t *testing.T) {
	r := New(Config{Provider: "none"}, http.DefaultClient, logger.Discard())
	if r.Enabled() {
		t.Fatal("provider none should be disabled")
	}
	if _, _, err := r.Review(context.Background(), []domain.Block{{ID: "b1"}}, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
	if New(Config{Provider: "anthropic"}, http.DefaultClient, logger.Discard()).Enabled() {
		t.Fatal("anthropic without key should be disabled")
	}
}

func TestReviewOpenAIBatches(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "bad auth", http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req openAIRequest
		if err := json.Unmarshal(body, &req); err != nil || len(req.Messages) != 2 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		// Echo one suggestion per block id present in the prompt.
		var matches []map[string]string
		for _, id := range []string{"b1", "b2", "b3"} {
			if strings.Contains(req.Messages[1].Content, `"id":"`+id+`"`) {
				matches = append(matches, map[string]string{"blockId": id, "taskId": "t1", "reason": "fits"})
			}
		}
		content, _ := json.Marshal(map[string]any{"matches": matches})
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": string(content)}}},
			"usage":   map[string]int{"prompt_tokens": 100, "completion_tokens": 10},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	r := New(Config{Provider: "openai", OpenAIAPIKey: "sk-test", BatchSize: 2}, server.Client(), logger.Discard())
	r.openAIURL = server.URL

	blocks := []domain.Block{{ID: "b1"}, {ID: "b2"}, {ID: "b3"}}
	got, usage, err := r.Review(context.Background(), blocks, []domain.Task{{ID: "t1", Name: "AP Setup"}})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 batch calls, got %d", calls.Load())
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %+v", got)
	}
	if usage.TotalTokens() != 220 {
		t.Fatalf("expected usage 220 tokens, got %d", usage.TotalTokens())
	}
}

func TestReviewKeepsSuccessfulBatches(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `\"id\":\"b2\"`) {
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "rate limited"}})
			return
		}
		content := `{"matches":[{"blockId":"b1","taskId":"t1","reason":"fits"}]}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	defer server.Close()

	r := New(Config{Provider: "openai", OpenAIAPIKey: "sk-test", BatchSize: 1}, server.Client(), logger.Discard())
	r.openAIURL = server.URL

	got, _, err := r.Review(context.Background(), []domain.Block{{ID: "b1"}, {ID: "b2"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(got) != 1 || got[0].BlockID != "b1" {
		t.Fatalf("expected suggestion from the healthy batch, got %+v", got)
	}
}
