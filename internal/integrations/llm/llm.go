// Package llm asks a hosted model to place activity blocks the
// deterministic matcher left unmatched, and to rank the day's tasks.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/femibol/propel-command-center/internal/domain"
)

var ErrDisabled = errors.New("llm assist is disabled")

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultBatchSize      = 20
	defaultMaxTasks       = 30
	maxConcurrentBatches  = 4
)

type Config struct {
	Provider        string
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	BatchSize       int
	MaxTasks        int
}

type Usage struct {
	InputTokens              int64 `json:"inputTokens"`
	OutputTokens             int64 `json:"outputTokens"`
	CacheCreationInputTokens int64 `json:"cacheCreationInputTokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cacheReadInputTokens,omitempty"`
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

type Reviewer struct {
	cfg        Config
	httpClient *http.Client
	logger     *log.Logger

	anthropicURL string
	openAIURL    string
}

func New(cfg Config, httpClient *http.Client, logger *log.Logger) *Reviewer {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxTasks < 1 {
		cfg.MaxTasks = defaultMaxTasks
	}
	return &Reviewer{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		openAIURL:  "https://api.openai.com/v1/chat/completions",
	}
}

// Enabled reports whether a provider and its key are configured.
func (r *Reviewer) Enabled() bool {
	if r == nil {
		return false
	}
	switch r.cfg.Provider {
	case "anthropic":
		return r.cfg.AnthropicAPIKey != ""
	case "openai":
		return r.cfg.OpenAIAPIKey != ""
	}
	return false
}

// Review classifies blocks in batches. Suggestions from batches that
// succeeded are returned together with the joined errors of those that
// failed.
func (r *Reviewer) Review(ctx context.Context, blocks []domain.Block, tasks []domain.Task) ([]domain.Suggestion, Usage, error) {
	if !r.Enabled() {
		return nil, Usage{}, ErrDisabled
	}
	if len(blocks) == 0 {
		return nil, Usage{}, nil
	}
	if len(tasks) > r.cfg.MaxTasks {
		tasks = tasks[:r.cfg.MaxTasks]
	}

	var batches [][]domain.Block
	for start := 0; start < len(blocks); start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, len(blocks))
		batches = append(batches, blocks[start:end])
	}

	type batchResult struct {
		suggestions []domain.Suggestion
		usage       Usage
		err         error
	}
	results := make([]batchResult, len(batches))
	sem := make(chan struct{}, batchConcurrencyLimit(len(batches)))

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(idx int, batch []domain.Block) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			system, user, err := buildPrompts(batch, tasks)
			if err != nil {
				results[idx] = batchResult{err: err}
				return
			}
			text, usage, err := r.call(ctx, "match-review", system, user, "blocks", len(batch), "batch", idx)
			if err != nil {
				results[idx] = batchResult{usage: usage, err: err}
				return
			}
			parsed, err := parseReview(text)
			results[idx] = batchResult{suggestions: parsed, usage: usage, err: err}
		}(i, batch)
	}
	wg.Wait()

	var (
		out   []domain.Suggestion
		total Usage
		errs  []error
	)
	for i, res := range results {
		total.Add(res.usage)
		if res.err != nil {
			errs = append(errs, fmt.Errorf("batch %d: %w", i, res.err))
			continue
		}
		out = append(out, res.suggestions...)
	}
	return out, total, errors.Join(errs...)
}

func (r *Reviewer) call(ctx context.Context, op, system, user string, keyvals ...any) (string, Usage, error) {
	model := r.cfg.Model
	switch r.cfg.Provider {
	case "openai":
		if model == "" {
			model = defaultOpenAIModel
		}
		r.logger.Info("llm "+op, append([]any{"provider", "openai", "model", model}, keyvals...)...)
		return r.callOpenAI(ctx, model, system, user)
	default:
		if model == "" {
			model = defaultAnthropicModel
		}
		r.logger.Info("llm "+op, append([]any{"provider", "anthropic", "model", model}, keyvals...)...)
		return r.callAnthropic(ctx, model, system, user)
	}
}

func batchConcurrencyLimit(total int) int {
	if total < 1 {
		return 1
	}
	return min(total, maxConcurrentBatches)
}

type promptBlock struct {
	ID       string  `json:"id"`
	Day      string  `json:"day"`
	Start    string  `json:"start"`
	Minutes  float64 `json:"minutes"`
	App      string  `json:"app"`
	Title    string  `json:"title"`
	URL      string  `json:"url,omitempty"`
	Category string  `json:"category"`
}

type promptTask struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent,omitempty"`
	Client string `json:"client"`
	Code   string `json:"code"`
}

const systemPrompt = `You are helping match time tracking entries to project tasks. Given unmatched screen activity blocks and a list of available tasks, suggest the best task for each block.

Rules:
- Use only task ids from the list.
- If a block clearly belongs to a client but no task fits, use "GENERAL" as the taskId and set "client" to the client name.
- If a block is personal or not client work, use "SKIP".
- Keep each reason under 15 words.

Return JSON only: {"matches": [{"blockId": "...", "taskId": "...", "client": "...", "reason": "..."}]}`

func buildPrompts(blocks []domain.Block, tasks []domain.Task) (string, string, error) {
	pb := make([]promptBlock, 0, len(blocks))
	for _, b := range blocks {
		pb = append(pb, promptBlock{
			ID:       b.ID,
			Day:      b.Day,
			Start:    b.StartUTC.Format("15:04"),
			Minutes:  b.DurationMinutes,
			App:      b.App,
			Title:    b.Title,
			URL:      b.URL,
			Category: string(b.Category),
		})
	}
	pt := make([]promptTask, 0, len(tasks))
	for _, t := range tasks {
		pt = append(pt, promptTask{
			ID:     t.ID,
			Name:   t.Name,
			Parent: t.ParentName,
			Client: t.ClientName,
			Code:   t.ClientShortCode,
		})
	}
	blockJSON, err := json.Marshal(pb)
	if err != nil {
		return "", "", fmt.Errorf("encoding blocks: %w", err)
	}
	taskJSON, err := json.Marshal(pt)
	if err != nil {
		return "", "", fmt.Errorf("encoding tasks: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Unmatched blocks:\n")
	sb.Write(blockJSON)
	sb.WriteString("\n\nAvailable tasks:\n")
	sb.Write(taskJSON)
	return systemPrompt, sb.String(), nil
}

type reviewItem struct {
	BlockID         string `json:"blockId"`
	TaskID          string `json:"taskId"`
	SuggestedTaskID string `json:"suggestedTaskId"`
	Client          string `json:"client"`
	Reason          string `json:"reason"`
}

// decodeObject unmarshals the JSON object in a model reply. Fences and
// surrounding prose are tolerated.
func decodeObject(responseText string, v any) error {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	err := json.Unmarshal([]byte(responseText), v)
	if err == nil {
		return nil
	}
	first := strings.Index(responseText, "{")
	last := strings.LastIndex(responseText, "}")
	if first < 0 || last <= first {
		return err
	}
	return json.Unmarshal([]byte(responseText[first:last+1]), v)
}

func parseReview(responseText string) ([]domain.Suggestion, error) {
	var parsed struct {
		Matches []reviewItem `json:"matches"`
	}
	if err := decodeObject(responseText, &parsed); err != nil {
		return nil, fmt.Errorf("parsing LLM review response: %w (response: %s)", err, strings.TrimSpace(responseText))
	}

	out := make([]domain.Suggestion, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		taskID := strings.TrimSpace(m.TaskID)
		if taskID == "" {
			taskID = strings.TrimSpace(m.SuggestedTaskID)
		}
		blockID := strings.TrimSpace(m.BlockID)
		if blockID == "" {
			continue
		}
		out = append(out, domain.Suggestion{
			BlockID: blockID,
			TaskID:  taskID,
			Client:  strings.TrimSpace(m.Client),
			Reason:  strings.TrimSpace(m.Reason),
		})
	}
	return out, nil
}
