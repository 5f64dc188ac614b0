// Package matcher attributes activity blocks to catalog tasks or clients.
//
// Matching runs in two passes. Classify evaluates a fixed, ordered list of
// heuristics per block and keeps the first usable hit. Reconcile then
// promotes unmatched blocks whose temporal neighbours are dominated by one
// client. Neither pass retains state between calls.
package matcher

import (
	"fmt"
	"time"

	"github.com/femibol/propel-command-center/internal/domain"
)

const (
	ReasonNoMatch  = "No match found"
	ReasonTooShort = "Block shorter than 1 minute"
)

// ProximityConfig tunes the proximity reconciler.
type ProximityConfig struct {
	Window          time.Duration
	Dominance       float64
	MinMinutes      float64
	NoiseCategory   domain.Category
	NoiseMaxMinutes float64 // blocks of NoiseCategory shorter than this are never promoted; 0 disables
}

func DefaultProximity() ProximityConfig {
	return ProximityConfig{
		Window:          15 * time.Minute,
		Dominance:       0.6,
		MinMinutes:      5,
		NoiseCategory:   domain.CategoryOther,
		NoiseMaxMinutes: 3,
	}
}

// Result partitions blocks into matched and unmatched. Every input block
// lands in exactly one of the two slices.
type Result struct {
	Matched   []domain.Match `json:"matched"`
	Unmatched []domain.Match `json:"unmatched"`
}

func (r Result) Len() int {
	return len(r.Matched) + len(r.Unmatched)
}

type Matcher struct {
	mappings   []domain.DomainMapping
	proximity  ProximityConfig
	heuristics []heuristic
}

// New builds a Matcher over an immutable copy of the domain mappings.
func New(mappings []domain.DomainMapping, proximity ProximityConfig) *Matcher {
	return &Matcher{
		mappings:   append([]domain.DomainMapping(nil), mappings...),
		proximity:  proximity,
		heuristics: defaultHeuristics(),
	}
}

// Match runs the heuristic pass over every block and then the proximity pass
// exactly once over the complete result.
func (m *Matcher) Match(blocks []domain.Block, tasks []domain.Task) Result {
	return m.Reconcile(m.Classify(blocks, tasks))
}

// Classify runs the heuristic cascade only.
func (m *Matcher) Classify(blocks []domain.Block, tasks []domain.Task) Result {
	var res Result
	cat := newCatalog(tasks)
	for _, b := range blocks {
		match := m.classify(b, cat)
		if match.Matched() {
			res.Matched = append(res.Matched, match)
		} else {
			res.Unmatched = append(res.Unmatched, match)
		}
	}
	return res
}

func (m *Matcher) classify(b domain.Block, cat catalog) (out domain.Match) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Match{Block: b, Reason: fmt.Sprintf("Matcher error: %v", r)}
		}
	}()

	out = domain.Match{Block: b, Reason: ReasonNoMatch}
	if b.DurationMinutes < 1 {
		out.Reason = ReasonTooShort
		return out
	}
	if len(cat) == 0 {
		return out
	}

	ctx := newBlockContext(b, cat, m.mappings)
	for _, h := range m.heuristics {
		got := h.fn(ctx)
		if got == nil {
			continue
		}
		if got.usable() {
			return domain.Match{
				Block:           b,
				Task:            got.task,
				Client:          got.client,
				ClientShortCode: got.code,
				Confidence:      got.confidence,
				Reason:          got.reason,
				Acumatica:       got.acumatica,
			}
		}
		out.Reason = got.reason
		out.Acumatica = out.Acumatica || got.acumatica
	}
	return out
}
