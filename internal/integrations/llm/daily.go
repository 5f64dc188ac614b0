package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/femibol/propel-command-center/internal/domain"
)

const (
	maxPlanTasks    = 50
	maxPlanBlocks   = 30
	maxPlanSessions = 20
)

// PlanTask is an open work item as the board UI sees it.
type PlanTask struct {
	Name            string  `json:"name"`
	Client          string  `json:"client,omitempty"`
	Status          string  `json:"status,omitempty"`
	Priority        string  `json:"priority,omitempty"`
	DaysSinceUpdate int     `json:"daysSinceUpdate,omitempty"`
	PctComplete     float64 `json:"pctComplete,omitempty"`
}

type DailyTask struct {
	Rank             int    `json:"rank"`
	TaskName         string `json:"taskName"`
	Client           string `json:"client"`
	Reason           string `json:"reason"`
	SuggestedAction  string `json:"suggestedAction"`
	EstimatedMinutes int    `json:"estimatedMinutes"`
	RelatedActivity  string `json:"relatedActivity,omitempty"`
}

// DailyPlan is the ranked list. When the reply carries no usable JSON,
// Tasks is empty and Summary holds the raw reply.
type DailyPlan struct {
	Tasks   []DailyTask `json:"tasks"`
	Summary string      `json:"summary"`
	Usage   Usage       `json:"usage"`
}

const dailySystemPrompt = `You are a productivity assistant for an Acumatica ERP consultant. Given their active tasks, recent activity from screen monitoring, and Claude AI sessions, generate a prioritized daily task list.

Consider:
- Task priority levels (System Down > High > Medium > Low)
- Days since last update (stale items need attention)
- Items in waiting states that need follow-up (7+ days = overdue)
- What the consultant was working on recently
- Balanced client coverage
- Which tasks have related Claude sessions (meaning they were actively researching solutions)

Return JSON only:
{"tasks": [{"rank": 1, "taskName": "...", "client": "...", "reason": "...", "suggestedAction": "...", "estimatedMinutes": 30, "relatedActivity": "..."}], "summary": "..."}`

type planBlock struct {
	App      string  `json:"app"`
	Title    string  `json:"title"`
	Minutes  float64 `json:"duration"`
	Category string  `json:"category"`
}

type planSession struct {
	Topic       string  `json:"topic"`
	Minutes     float64 `json:"duration"`
	MatchedTask string  `json:"matchedTask,omitempty"`
}

// DailyTasks asks the model to rank today's work from the open tasks,
// recent blocks and assistant sessions.
func (r *Reviewer) DailyTasks(ctx context.Context, tasks []PlanTask, blocks []domain.Block, sessions []domain.ClaudeSession) (DailyPlan, error) {
	if !r.Enabled() {
		return DailyPlan{}, ErrDisabled
	}
	user, err := buildDailyPrompt(tasks, blocks, sessions)
	if err != nil {
		return DailyPlan{}, err
	}
	text, usage, err := r.call(ctx, "daily-tasks", dailySystemPrompt, user,
		"tasks", min(len(tasks), maxPlanTasks), "blocks", min(len(blocks), maxPlanBlocks))
	if err != nil {
		return DailyPlan{Usage: usage}, err
	}
	plan := parseDailyPlan(text)
	plan.Usage = usage
	return plan, nil
}

func buildDailyPrompt(tasks []PlanTask, blocks []domain.Block, sessions []domain.ClaudeSession) (string, error) {
	if tasks == nil {
		tasks = []PlanTask{}
	}
	tasks = tasks[:min(len(tasks), maxPlanTasks)]

	pb := make([]planBlock, 0, min(len(blocks), maxPlanBlocks))
	for _, b := range blocks[:min(len(blocks), maxPlanBlocks)] {
		pb = append(pb, planBlock{App: b.App, Title: b.Title, Minutes: b.DurationMinutes, Category: string(b.Category)})
	}
	ps := make([]planSession, 0, min(len(sessions), maxPlanSessions))
	for _, s := range sessions[:min(len(sessions), maxPlanSessions)] {
		p := planSession{Topic: s.Topic, Minutes: s.DurationMinutes}
		if s.Task != nil {
			p.MatchedTask = s.Task.Name
		}
		ps = append(ps, p)
	}

	var sb strings.Builder
	for _, section := range []struct {
		title string
		v     any
	}{
		{"Active Tasks", tasks},
		{"Recent Activity", pb},
		{"Claude Sessions", ps},
	} {
		data, err := json.MarshalIndent(section.v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encoding %s: %w", strings.ToLower(section.title), err)
		}
		fmt.Fprintf(&sb, "%s:\n%s\n\n", section.title, data)
	}
	sb.WriteString("Generate today's prioritized task list.")
	return sb.String(), nil
}

func parseDailyPlan(responseText string) DailyPlan {
	var plan DailyPlan
	if err := decodeObject(responseText, &plan); err != nil {
		return DailyPlan{Tasks: []DailyTask{}, Summary: strings.TrimSpace(responseText)}
	}
	if plan.Tasks == nil {
		plan.Tasks = []DailyTask{}
	}
	return plan
}
