package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/logger"
	"github.com/femibol/propel-command-center/internal/pipeline"
)

type fakePoster struct {
	channel string
	calls   int
	err     error
}

func (f *fakePoster) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channel = channelID
	if len(options) == 0 {
		return "", "", errors.New("no message options")
	}
	return channelID, "1700000000.000100", f.err
}

func sampleReport() pipeline.MatchReport {
	return pipeline.MatchReport{
		Timesheet: domain.Timesheet{
			Rows: []domain.TimesheetRow{
				{ID: "task-2", ClientShortCode: "WLV", ProjectName: "Sales Order Import", Hours: domain.WeekHours{Mon: 1.5, Tue: 0.25}},
				{ID: "task-1", ClientShortCode: "ACM", ProjectName: "Vendor Bills", Hours: domain.WeekHours{Wed: 3}},
				{ID: "client-BBF", ClientShortCode: "BBF", ProjectName: "Bluebird Foods", Hours: domain.WeekHours{Fri: 0.5}},
			},
			Unmatched: []domain.Match{
				{Block: domain.Block{ID: "u1", DurationMinutes: 12.5}},
				{Block: domain.Block{ID: "u2", DurationMinutes: 7.5}},
			},
		},
	}
}

func TestFormatDigest(t *testing.T) {
	got := formatDigest(sampleReport(), 10)
	for _, want := range []string{
		"*Matched:* 5.25h across 3 rows",
		"• `ACM` Vendor Bills: 3.00h",
		"*Unmatched:* 2 blocks, 20 min",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("digest missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "ACM") > strings.Index(got, "WLV") {
		t.Fatalf("rows should be ordered by hours:\n%s", got)
	}
}

func TestFormatDigestTruncates(t *testing.T) {
	got := formatDigest(sampleReport(), 1)
	if !strings.Contains(got, "_and 2 more_") {
		t.Fatalf("expected truncation note:\n%s", got)
	}
	if strings.Contains(got, "BBF") {
		t.Fatalf("truncated row leaked:\n%s", got)
	}
}

func TestRunBuildsCurrentWeek(t *testing.T) {
	poster := &fakePoster{}
	var gotStart, gotEnd string
	build := func(_ context.Context, start, end string) (pipeline.MatchReport, error) {
		gotStart, gotEnd = start, end
		return sampleReport(), nil
	}
	d := NewDigest(poster, "C123", build, time.UTC, logger.Discard())
	d.now = func() time.Time { return time.Date(2026, 2, 13, 17, 0, 0, 0, time.UTC) } // Friday

	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotStart != "2026-02-09" || gotEnd != "2026-02-15" {
		t.Fatalf("range = %s..%s, want 2026-02-09..2026-02-15", gotStart, gotEnd)
	}
	if poster.calls != 1 || poster.channel != "C123" {
		t.Fatalf("unexpected post: calls=%d channel=%s", poster.calls, poster.channel)
	}
}

func TestRunReportsErrors(t *testing.T) {
	build := func(context.Context, string, string) (pipeline.MatchReport, error) {
		return pipeline.MatchReport{}, errors.New("catalog unavailable")
	}
	poster := &fakePoster{}
	d := NewDigest(poster, "C123", build, time.UTC, logger.Discard())
	if err := d.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "catalog unavailable") {
		t.Fatalf("expected build error, got %v", err)
	}
	if poster.calls != 0 {
		t.Fatal("nothing should be posted when the build fails")
	}

	poster.err = errors.New("channel_not_found")
	d = NewDigest(poster, "C123", func(context.Context, string, string) (pipeline.MatchReport, error) {
		return sampleReport(), nil
	}, time.UTC, logger.Discard())
	if err := d.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("expected post error, got %v", err)
	}
}
