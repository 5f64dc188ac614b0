package matcher

import (
	"testing"

	"github.com/femibol/propel-command-center/internal/domain"
)

func TestApplySuggestions(t *testing.T) {
	var unmatched []domain.Match
	for i, id := range []string{"u1", "u2", "u3", "u4"} {
		unmatched = append(unmatched, domain.Match{
			Block:  block(id, "Notepad", "notes", "", float64(i*10), 5, domain.CategoryDocumentation),
			Reason: ReasonNoMatch,
		})
	}
	in := Result{Unmatched: unmatched}

	out, applied := ApplySuggestions(in, []domain.Suggestion{
		{BlockID: "u1", TaskID: "2", Reason: "sales order page"},
		{BlockID: "u1", TaskID: "3", Reason: "ignored duplicate"},
		{BlockID: "u2", TaskID: domain.SuggestionGeneral, Client: "bluebird foods", Reason: "client email"},
		{BlockID: "u3", TaskID: domain.SuggestionSkip, Reason: "personal"},
		{BlockID: "u4", TaskID: "999", Reason: "hallucinated"},
		{BlockID: "nope", TaskID: "1", Reason: "unknown block"},
	}, testTasks)

	if applied != 2 || len(out.Matched) != 2 || len(out.Unmatched) != 2 {
		t.Fatalf("expected 2 applied, got applied=%d result=%+v", applied, out)
	}
	if m := out.Matched[0]; m.ID != "u1" || m.Task == nil || m.Task.ID != "2" || m.Confidence != domain.ConfidenceLow || m.Reason != "AI: sales order page" {
		t.Fatalf("unexpected task suggestion result %+v", m)
	}
	if m := out.Matched[1]; m.ID != "u2" || m.Task != nil || m.ClientShortCode != "BBF" || !m.Matched() {
		t.Fatalf("unexpected client suggestion result %+v", m)
	}
	if out.Unmatched[0].ID != "u3" || out.Unmatched[1].ID != "u4" {
		t.Fatalf("unexpected unmatched %+v", out.Unmatched)
	}
	if len(in.Matched) != 0 || len(in.Unmatched) != 4 {
		t.Fatalf("input result must not change")
	}
}
