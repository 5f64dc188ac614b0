package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/logger"
)

func openAIReply(w http.ResponseWriter, content string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		"usage":   map[string]int{"prompt_tokens": 40, "completion_tokens": 8},
	})
}

func TestParseDailyPlan(t *testing.T) {
	plan := parseDailyPlan("Sure!\n```json\n{\"tasks\":[{\"rank\":1,\"taskName\":\"AP Setup\",\"client\":\"WLV\",\"estimatedMinutes\":45}],\"summary\":\"Close out AP\"}\n```")
	if len(plan.Tasks) != 1 || plan.Tasks[0].TaskName != "AP Setup" || plan.Tasks[0].EstimatedMinutes != 45 || plan.Summary != "Close out AP" {
		t.Fatalf("unexpected plan %+v", plan)
	}

	plan = parseDailyPlan("Focus on WLV today.")
	if len(plan.Tasks) != 0 || plan.Tasks == nil || plan.Summary != "Focus on WLV today." {
		t.Fatalf("expected prose fallback, got %+v", plan)
	}
}

func TestBuildDailyPromptCapsSections(t *testing.T) {
	tasks := make([]PlanTask, 60)
	for i := range tasks {
		tasks[i] = PlanTask{Name: fmt.Sprintf("task-%02d", i)}
	}
	blocks := []domain.Block{{App: "Excel", Title: "Budget", DurationMinutes: 12, Category: domain.CategoryDataWork}}
	sessions := []domain.ClaudeSession{{
		Block: domain.Block{DurationMinutes: 6},
		Topic: "sales order import",
		Task:  &domain.Task{Name: "Sales Order Import"},
	}}

	user, err := buildDailyPrompt(tasks, blocks, sessions)
	if err != nil {
		t.Fatalf("buildDailyPrompt: %v", err)
	}
	if !strings.Contains(user, "task-49") || strings.Contains(user, "task-50") {
		t.Fatal("expected tasks capped at 50")
	}
	for _, want := range []string{"Recent Activity:", `"app": "Excel"`, `"matchedTask": "Sales Order Import"`} {
		if !strings.Contains(user, want) {
			t.Fatalf("prompt missing %q:\n%s", want, user)
		}
	}
}

func TestDailyTasksOpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		if !strings.Contains(req.Messages[0].Content, "prioritized daily task list") || !strings.Contains(req.Messages[1].Content, "AP Setup") {
			http.Error(w, "unexpected prompt", http.StatusBadRequest)
			return
		}
		openAIReply(w, `{"tasks":[{"rank":1,"taskName":"AP Setup","client":"Wolverine","reason":"stale 9 days","suggestedAction":"ping the controller","estimatedMinutes":30}],"summary":"AP first"}`)
	}))
	defer server.Close()

	r := New(Config{Provider: "openai", OpenAIAPIKey: "sk-test"}, server.Client(), logger.Discard())
	r.openAIURL = server.URL

	plan, err := r.DailyTasks(context.Background(), []PlanTask{{Name: "AP Setup", Priority: "High", DaysSinceUpdate: 9}}, nil, nil)
	if err != nil {
		t.Fatalf("DailyTasks: %v", err)
	}
	if len(plan.Tasks) != 1 || plan.Tasks[0].Rank != 1 || plan.Tasks[0].SuggestedAction != "ping the controller" {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if plan.Summary != "AP first" || plan.Usage.TotalTokens() != 48 {
		t.Fatalf("unexpected summary or usage %+v", plan)
	}
}

func TestDailyTasksDisabled(t *testing.T) {
	r := New(Config{}, http.DefaultClient, logger.Discard())
	if _, err := r.DailyTasks(context.Background(), nil, nil, nil); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}
