// Package pipeline runs one request through the stages: samples to blocks,
// blocks to matches, matches to timesheet rows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/femibol/propel-command-center/internal/activity"
	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/integrations/llm"
	"github.com/femibol/propel-command-center/internal/matcher"
	"github.com/femibol/propel-command-center/internal/storage"
	"github.com/femibol/propel-command-center/internal/timesheet"
)

// Reviewer classifies blocks the matcher could not place.
type Reviewer interface {
	Enabled() bool
	Review(ctx context.Context, blocks []domain.Block, tasks []domain.Task) ([]domain.Suggestion, llm.Usage, error)
}

type Service struct {
	source        storage.SampleSource
	matcher       *matcher.Matcher
	reviewer      Reviewer
	assistTimeout time.Duration
	logger        *log.Logger
}

// New builds a Service. reviewer may be nil.
func New(source storage.SampleSource, m *matcher.Matcher, reviewer Reviewer, assistTimeout time.Duration, logger *log.Logger) *Service {
	return &Service{
		source:        source,
		matcher:       m,
		reviewer:      reviewer,
		assistTimeout: assistTimeout,
		logger:        logger,
	}
}

type BlocksReport struct {
	Blocks     []domain.Block            `json:"blocks"`
	ByDay      map[string][]domain.Block `json:"byDay"`
	Summary    domain.BlockSummary       `json:"summary"`
	EntryCount int                       `json:"entryCount"`
}

type AssistReport struct {
	Suggestions int       `json:"suggestions"`
	Applied     int       `json:"applied"`
	Usage       llm.Usage `json:"usage"`
	Error       string    `json:"error,omitempty"`
}

type MatchReport struct {
	Timesheet   domain.Timesheet `json:"timesheet"`
	Matched     int              `json:"matched"`
	Unmatched   int              `json:"unmatched"`
	TotalBlocks int              `json:"totalBlocks"`
	Assist      *AssistReport    `json:"assist,omitempty"`
}

type ClaudeReport struct {
	Sessions           []domain.ClaudeSession `json:"sessions"`
	TotalClaudeMinutes float64                `json:"totalClaudeMinutes"`
}

// ValidateRange checks an inclusive DayLayout date range.
func ValidateRange(start, end string) error {
	if start == "" || end == "" {
		return errors.New("start and end are required (YYYY-MM-DD)")
	}
	s, err := time.Parse(domain.DayLayout, start)
	if err != nil {
		return fmt.Errorf("invalid start %q: expected YYYY-MM-DD", start)
	}
	e, err := time.Parse(domain.DayLayout, end)
	if err != nil {
		return fmt.Errorf("invalid end %q: expected YYYY-MM-DD", end)
	}
	if e.Before(s) {
		return fmt.Errorf("end %s is before start %s", end, start)
	}
	return nil
}

func (s *Service) blocks(ctx context.Context, start, end string) ([]domain.Block, int, error) {
	samples, err := s.source.Entries(ctx, start, end)
	if errors.Is(err, storage.ErrUnavailable) {
		s.logger.Warn("activity database unavailable, using no samples", "err", err)
		return []domain.Block{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("reading samples %s..%s: %w", start, end, err)
	}
	return activity.Aggregate(samples), len(samples), nil
}

func (s *Service) Blocks(ctx context.Context, start, end string) (BlocksReport, error) {
	blocks, count, err := s.blocks(ctx, start, end)
	if err != nil {
		return BlocksReport{}, err
	}
	return BlocksReport{
		Blocks:     blocks,
		ByDay:      activity.GroupByDay(blocks),
		Summary:    activity.Summarize(blocks),
		EntryCount: count,
	}, nil
}

// Match builds the timesheet for a date range. With assist set and a
// reviewer enabled, unmatched blocks get one review pass; a failing review
// keeps the deterministic result.
func (s *Service) Match(ctx context.Context, start, end string, tasks []domain.Task, assist bool) (MatchReport, error) {
	blocks, _, err := s.blocks(ctx, start, end)
	if err != nil {
		return MatchReport{}, err
	}
	result := s.matcher.Match(blocks, tasks)

	var assistReport *AssistReport
	if assist && len(result.Unmatched) > 0 {
		result, assistReport = s.assist(ctx, result, tasks)
	}

	s.logger.Debug("timesheet built", "start", start, "end", end, "blocks", len(blocks), "matched", len(result.Matched), "unmatched", len(result.Unmatched))
	return MatchReport{
		Timesheet:   timesheet.Build(result.Matched, result.Unmatched),
		Matched:     len(result.Matched),
		Unmatched:   len(result.Unmatched),
		TotalBlocks: len(blocks),
		Assist:      assistReport,
	}, nil
}

func (s *Service) assist(ctx context.Context, result matcher.Result, tasks []domain.Task) (matcher.Result, *AssistReport) {
	report := &AssistReport{}
	if s.reviewer == nil || !s.reviewer.Enabled() {
		report.Error = llm.ErrDisabled.Error()
		return result, report
	}
	if s.assistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.assistTimeout)
		defer cancel()
	}

	unmatched := make([]domain.Block, len(result.Unmatched))
	for i, m := range result.Unmatched {
		unmatched[i] = m.Block
	}
	suggestions, usage, err := s.reviewer.Review(ctx, unmatched, tasks)
	report.Usage = usage
	report.Suggestions = len(suggestions)
	if err != nil {
		s.logger.Warn("assist review failed", "err", err, "suggestions", len(suggestions))
		report.Error = err.Error()
	}
	if len(suggestions) == 0 {
		return result, report
	}
	result, report.Applied = matcher.ApplySuggestions(result, suggestions, tasks)
	return result, report
}

func (s *Service) ClaudeSessions(ctx context.Context, start, end string, tasks []domain.Task) (ClaudeReport, error) {
	blocks, _, err := s.blocks(ctx, start, end)
	if err != nil {
		return ClaudeReport{}, err
	}
	sessions := matcher.ClaudeSessions(blocks, tasks)
	if sessions == nil {
		sessions = []domain.ClaudeSession{}
	}
	return ClaudeReport{Sessions: sessions, TotalClaudeMinutes: matcher.TotalMinutes(sessions)}, nil
}
