package matcher

import (
	"fmt"

	"github.com/femibol/propel-command-center/internal/domain"
)

// Reconcile promotes unmatched blocks surrounded by one client's work. It
// only looks at blocks matched before the call, so promotions never cascade.
func (m *Matcher) Reconcile(r Result) Result {
	out := Result{Matched: append([]domain.Match(nil), r.Matched...)}
	for _, u := range r.Unmatched {
		if promoted, ok := m.proximity.promote(u, r.Matched); ok {
			out.Matched = append(out.Matched, promoted)
			continue
		}
		out.Unmatched = append(out.Unmatched, u)
	}
	return out
}

func (p ProximityConfig) promote(u domain.Match, matched []domain.Match) (domain.Match, bool) {
	if p.NoiseMaxMinutes > 0 && u.Category == p.NoiseCategory && u.DurationMinutes < p.NoiseMaxMinutes {
		return domain.Match{}, false
	}

	var (
		order   []string
		minutes = map[string]float64{}
		total   float64
	)
	for _, n := range matched {
		if n.ClientShortCode == "" || n.Day != u.Day {
			continue
		}
		d := n.StartUTC.Sub(u.StartUTC)
		if d < 0 {
			d = -d
		}
		if d > p.Window {
			continue
		}
		if _, seen := minutes[n.ClientShortCode]; !seen {
			order = append(order, n.ClientShortCode)
		}
		minutes[n.ClientShortCode] += n.DurationMinutes
		total += n.DurationMinutes
	}
	if total < p.MinMinutes || total == 0 {
		return domain.Match{}, false
	}

	top := ""
	for _, code := range order {
		if top == "" || minutes[code] > minutes[top] {
			top = code
		}
	}
	if minutes[top]/total < p.Dominance {
		return domain.Match{}, false
	}

	for _, n := range matched {
		if n.ClientShortCode != top {
			continue
		}
		return domain.Match{
			Block:           u.Block,
			Task:            n.Task,
			Client:          n.Client,
			ClientShortCode: top,
			Confidence:      domain.ConfidenceLow,
			Reason:          fmt.Sprintf("Proximity: surrounded by %s work", top),
		}, true
	}
	return domain.Match{}, false
}
