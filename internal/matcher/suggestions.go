package matcher

import (
	"strings"

	"github.com/femibol/propel-command-center/internal/domain"
)

// ApplySuggestions moves unmatched blocks into the matched set according to
// external classifier verdicts. Only the first verdict per block counts.
// SKIP verdicts, unknown block ids and task ids that do not resolve against
// tasks are ignored. It returns the new result and how many blocks moved.
func ApplySuggestions(r Result, suggestions []domain.Suggestion, tasks []domain.Task) (Result, int) {
	byTask := make(map[string]domain.Task, len(tasks))
	clients := map[string]domain.Task{}
	for _, t := range tasks {
		if _, ok := byTask[t.ID]; !ok {
			byTask[t.ID] = t
		}
		for _, k := range []string{t.ClientName, t.ClientShortCode} {
			k = strings.ToLower(strings.TrimSpace(k))
			if _, ok := clients[k]; k != "" && !ok {
				clients[k] = t
			}
		}
	}

	verdicts := map[string]domain.Match{}
	for _, s := range suggestions {
		if _, done := verdicts[s.BlockID]; done {
			continue
		}
		m, ok := resolveSuggestion(s, byTask, clients)
		if !ok {
			continue
		}
		verdicts[s.BlockID] = m
	}

	out := Result{Matched: append([]domain.Match(nil), r.Matched...)}
	applied := 0
	for _, u := range r.Unmatched {
		v, ok := verdicts[u.ID]
		if !ok {
			out.Unmatched = append(out.Unmatched, u)
			continue
		}
		v.Block = u.Block
		out.Matched = append(out.Matched, v)
		applied++
	}
	return out, applied
}

func resolveSuggestion(s domain.Suggestion, byTask, clients map[string]domain.Task) (domain.Match, bool) {
	reason := "AI: " + strings.TrimSpace(s.Reason)
	switch s.TaskID {
	case "", domain.SuggestionSkip:
		return domain.Match{}, false
	case domain.SuggestionGeneral:
		t, ok := clients[strings.ToLower(strings.TrimSpace(s.Client))]
		if !ok || t.ClientShortCode == "" {
			return domain.Match{}, false
		}
		return domain.Match{
			Client:          t.ClientName,
			ClientShortCode: t.ClientShortCode,
			Confidence:      domain.ConfidenceLow,
			Reason:          reason,
		}, true
	}
	t, ok := byTask[s.TaskID]
	if !ok {
		return domain.Match{}, false
	}
	return domain.Match{
		Task:            &t,
		Client:          t.ClientName,
		ClientShortCode: t.ClientShortCode,
		Confidence:      domain.ConfidenceLow,
		Reason:          reason,
	}, true
}
