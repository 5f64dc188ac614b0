// Package timesheet folds matched blocks into weekly timesheet rows.
package timesheet

import (
	"math"
	"time"

	"github.com/femibol/propel-command-center/internal/domain"
)

const (
	unknownClient     = "Unknown"
	unknownClientCode = "???"
)

// row is the accumulator for one timesheet row. Minutes stay raw until Build
// has seen every block.
type row struct {
	head    domain.TimesheetRow
	minutes [7]float64 // indexed by time.Weekday
	sources []domain.Match
}

// RowKey is the grouping key of a matched block: its task id, else its client code.
func RowKey(m domain.Match) string {
	if m.Task != nil {
		return "task-" + m.Task.ID
	}
	if m.ClientShortCode == "" {
		return "client-unknown"
	}
	return "client-" + m.ClientShortCode
}

// Build groups matched blocks into rows keyed by RowKey. Each row sums raw
// minutes per weekday and rounds each day once to the nearest quarter hour.
// Rows keep first-seen order. Matched blocks whose day does not parse are
// skipped; unmatched blocks are passed through untouched.
func Build(matched, unmatched []domain.Match) domain.Timesheet {
	var order []string
	rows := map[string]row{}
	for _, m := range matched {
		day, ok := domain.Weekday(m.Day)
		if !ok {
			continue
		}
		key := RowKey(m)
		acc, seen := rows[key]
		if !seen {
			acc = newRow(key, m)
			order = append(order, key)
		}
		rows[key] = accumulate(acc, day, m)
	}

	out := domain.Timesheet{Rows: make([]domain.TimesheetRow, 0, len(order)), Unmatched: unmatched}
	for _, key := range order {
		out.Rows = append(out.Rows, finish(rows[key]))
	}
	return out
}

func newRow(key string, m domain.Match) row {
	head := domain.TimesheetRow{
		ID:              key,
		Task:            m.Task,
		Client:          m.Client,
		ClientShortCode: m.ClientShortCode,
	}
	if head.Client == "" {
		head.Client = unknownClient
	}
	if head.ClientShortCode == "" {
		head.ClientShortCode = unknownClientCode
	}
	switch {
	case m.Task != nil:
		head.ProjectName = m.Task.Name
		head.ParentName = m.Task.ParentName
	case m.Client != "":
		head.ProjectName = m.Client
	default:
		head.ProjectName = unknownClient
	}
	return row{head: head}
}

func accumulate(acc row, day time.Weekday, m domain.Match) row {
	acc.minutes[day] += m.DurationMinutes
	acc.sources = append(acc.sources, m)
	return acc
}

func finish(acc row) domain.TimesheetRow {
	out := acc.head
	for d, minutes := range acc.minutes {
		out.Hours = out.Hours.With(time.Weekday(d), RoundQuarter(minutes/60))
	}
	out.Sources = acc.sources
	return out
}

// RoundQuarter rounds hours to the nearest 0.25.
func RoundQuarter(hours float64) float64 {
	return math.Round(hours*4) / 4
}
