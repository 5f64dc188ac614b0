package activity

import "github.com/femibol/propel-command-center/internal/domain"

// GroupByDay buckets blocks by their calendar day, preserving order within a day.
func GroupByDay(blocks []domain.Block) map[string][]domain.Block {
	byDay := make(map[string][]domain.Block)
	for _, b := range blocks {
		byDay[b.Day] = append(byDay[b.Day], b)
	}
	return byDay
}

func Summarize(blocks []domain.Block) domain.BlockSummary {
	summary := domain.BlockSummary{
		BlockCount: len(blocks),
		ByCategory: make(map[domain.Category]float64),
		ByApp:      make(map[string]float64),
	}
	for _, b := range blocks {
		summary.TotalMinutes += b.DurationMinutes
		summary.ByCategory[b.Category] += b.DurationMinutes
		summary.ByApp[b.App] += b.DurationMinutes
	}
	summary.TotalMinutes = roundTenth(summary.TotalMinutes)
	summary.TotalHours = roundTenth(summary.TotalMinutes / 60)
	return summary
}
