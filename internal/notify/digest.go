// Package notify posts the weekly timesheet digest to Slack.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/slack-go/slack"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/pipeline"
	"github.com/femibol/propel-command-center/internal/schedule"
)

const defaultTopRows = 10

// Poster is the part of *slack.Client the digest needs.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// BuildFunc produces the timesheet for an inclusive date range.
type BuildFunc func(ctx context.Context, start, end string) (pipeline.MatchReport, error)

type Digest struct {
	poster  Poster
	channel string
	build   BuildFunc
	loc     *time.Location
	logger  *log.Logger
	now     func() time.Time
	topRows int
}

func NewDigest(poster Poster, channel string, build BuildFunc, loc *time.Location, logger *log.Logger) *Digest {
	if loc == nil {
		loc = time.Local
	}
	return &Digest{
		poster:  poster,
		channel: channel,
		build:   build,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
		topRows: defaultTopRows,
	}
}

// Start posts the digest on the cron spec until ctx is done.
func (d *Digest) Start(ctx context.Context, spec string) error {
	return schedule.Start(ctx, "weekly-digest", spec, d.loc, d.logger, func(ctx context.Context) {
		if err := d.Run(ctx); err != nil {
			d.logger.Error("weekly digest failed", "err", err)
		}
	})
}

// Run posts the digest for the week containing now.
func (d *Digest) Run(ctx context.Context) error {
	monday, nextMonday := domain.WeekRangeAt(d.now().In(d.loc))
	start := monday.Format(domain.DayLayout)
	end := nextMonday.AddDate(0, 0, -1).Format(domain.DayLayout)

	report, err := d.build(ctx, start, end)
	if err != nil {
		return fmt.Errorf("building timesheet %s..%s: %w", start, end, err)
	}

	header := fmt.Sprintf("Timesheet %s to %s", start, end)
	body := formatDigest(report, d.topRows)
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, body, false, false), nil, nil),
	}
	_, ts, err := d.poster.PostMessageContext(ctx, d.channel,
		slack.MsgOptionText(header+"\n"+body, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return fmt.Errorf("posting digest: %w", err)
	}
	d.logger.Info("weekly digest posted", "channel", d.channel, "ts", ts, "rows", len(report.Timesheet.Rows))
	return nil
}

func formatDigest(report pipeline.MatchReport, top int) string {
	rows := append([]domain.TimesheetRow(nil), report.Timesheet.Rows...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Hours.Total() > rows[j].Hours.Total()
	})

	var total float64
	for _, r := range rows {
		total += r.Hours.Total()
	}
	var unmatchedMinutes float64
	for _, u := range report.Timesheet.Unmatched {
		unmatchedMinutes += u.DurationMinutes
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*Matched:* %.2fh across %d rows\n", total, len(rows))
	for i, r := range rows {
		if i == top {
			fmt.Fprintf(&sb, "_and %d more_\n", len(rows)-top)
			break
		}
		fmt.Fprintf(&sb, "• `%s` %s: %.2fh\n", r.ClientShortCode, r.ProjectName, r.Hours.Total())
	}
	fmt.Fprintf(&sb, "*Unmatched:* %d blocks, %.0f min", len(report.Timesheet.Unmatched), unmatchedMinutes)
	return sb.String()
}
