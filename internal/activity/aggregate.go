package activity

import (
	"math"
	"regexp"
	"time"

	"github.com/femibol/propel-command-center/internal/domain"
)

const (
	// GapThreshold is the longest silence that still extends a block.
	GapThreshold = 300 * time.Second

	smallBlockMinutes = 2.0
	minBlockMinutes   = 1.0
)

var blockIDUnsafeRe = regexp.MustCompile(`[^a-zA-Z0-9-]`)

type openBlock struct {
	start    time.Time
	end      time.Time
	app      string
	title    string
	rawTitle string
	category domain.Category
	url      string
	samples  int
}

// Aggregate compresses a chronologically ordered sample stream into blocks.
// Samples extend the current block while (app, normalized title) is unchanged
// and the gap since the block's last sample is at most GapThreshold. Blocks
// under two minutes are then folded into the immediately preceding block of
// the same app and day, and anything still under a minute is dropped.
func Aggregate(samples []domain.CaptureSample) []domain.Block {
	if len(samples) == 0 {
		return nil
	}

	var blocks []domain.Block
	var cur *openBlock

	for _, s := range samples {
		title := NormalizeTitle(s.WindowTitle)
		at := s.CapturedAt
		if at.IsZero() && cur != nil {
			// Malformed timestamp: absorb at the current block's last instant.
			at = cur.end
		}

		if cur != nil {
			gap := at.Sub(cur.end)
			if s.AppName == cur.app && title == cur.title && gap <= GapThreshold {
				cur.end = at
				cur.samples++
				if cur.url == "" && s.DetailURL != "" {
					cur.url = s.DetailURL
				}
				continue
			}
			blocks = append(blocks, finalize(cur))
		}

		cur = &openBlock{
			start:    at,
			end:      at,
			app:      s.AppName,
			title:    title,
			rawTitle: s.WindowTitle,
			category: Categorize(s.AppName, s.WindowTitle),
			url:      s.DetailURL,
			samples:  1,
		}
	}
	if cur != nil {
		blocks = append(blocks, finalize(cur))
	}

	return mergeSmallBlocks(blocks)
}

func finalize(b *openBlock) domain.Block {
	seconds := b.end.Sub(b.start).Seconds()
	if n := float64(b.samples); seconds < n {
		seconds = n
	}
	minutes := roundTenth(seconds / 60)
	start := b.start.UTC()

	return domain.Block{
		ID:              BlockID(start, b.app),
		StartUTC:        start,
		EndUTC:          b.end.UTC(),
		DurationMinutes: minutes,
		DurationHours:   roundTenth(minutes / 60),
		App:             b.app,
		Title:           b.title,
		RawTitle:        b.rawTitle,
		Category:        b.category,
		URL:             b.url,
		SampleCount:     b.samples,
		Day:             start.Format(domain.DayLayout),
	}
}

// BlockID derives a stable identifier from the block's start and app.
func BlockID(start time.Time, app string) string {
	return blockIDUnsafeRe.ReplaceAllString(start.UTC().Format(domain.CaptureLayout)+"-"+app, "_")
}

// mergeSmallBlocks only ever merges backwards into the immediately preceding
// block; a fragment between two blocks of other apps stays on its own.
func mergeSmallBlocks(blocks []domain.Block) []domain.Block {
	merged := make([]domain.Block, 0, len(blocks))
	for _, b := range blocks {
		if b.DurationMinutes < smallBlockMinutes && len(merged) > 0 {
			prev := &merged[len(merged)-1]
			if prev.App == b.App && prev.Day == b.Day {
				prev.EndUTC = b.EndUTC
				prev.DurationMinutes = roundTenth(prev.DurationMinutes + b.DurationMinutes)
				prev.DurationHours = roundTenth(prev.DurationMinutes / 60)
				prev.SampleCount += b.SampleCount
				continue
			}
		}
		merged = append(merged, b)
	}

	out := merged[:0]
	for _, b := range merged {
		if b.DurationMinutes >= minBlockMinutes {
			out = append(out, b)
		}
	}
	return out
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
