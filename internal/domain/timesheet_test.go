package domain

import (
	"testing"
	"time"
)

func TestWeekRangeAt(t *testing.T) {
	loc := time.FixedZone("UTC+0", 0)

	tests := []struct {
		name     string
		now      time.Time
		wantFrom string
		wantTo   string
	}{
		{"monday", time.Date(2026, 2, 9, 9, 0, 0, 0, loc), "20260209", "20260216"},
		{"wednesday", time.Date(2026, 2, 11, 17, 30, 0, 0, loc), "20260209", "20260216"},
		{"sunday belongs to previous monday", time.Date(2026, 2, 15, 23, 0, 0, 0, loc), "20260209", "20260216"},
		{"year boundary", time.Date(2026, 1, 1, 8, 0, 0, 0, loc), "20251229", "20260105"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := WeekRangeAt(tt.now)
			if from.Format("20060102") != tt.wantFrom || to.Format("20060102") != tt.wantTo {
				t.Fatalf("WeekRangeAt(%s) = %s -> %s, want %s -> %s", tt.now, from.Format("20060102"), to.Format("20060102"), tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestWeekday(t *testing.T) {
	wd, ok := Weekday("2026-02-15")
	if !ok || wd != time.Sunday {
		t.Fatalf("Weekday(2026-02-15) = %v, %v; want Sunday, true", wd, ok)
	}
	if _, ok := Weekday("15/02/2026"); ok {
		t.Fatal("expected malformed day to be rejected")
	}
}

func TestWeekHoursWithReturnsCopy(t *testing.T) {
	var w WeekHours
	next := w.With(time.Tuesday, 1.5).With(time.Sunday, 0.25)

	if w.Total() != 0 {
		t.Fatalf("original WeekHours mutated: %+v", w)
	}
	if next.Get(time.Tuesday) != 1.5 || next.Sun != 0.25 {
		t.Fatalf("unexpected WeekHours after With: %+v", next)
	}
	if next.Total() != 1.75 {
		t.Fatalf("Total() = %v, want 1.75", next.Total())
	}
}

func TestMatchMatched(t *testing.T) {
	if (Match{}).Matched() {
		t.Fatal("empty match must not count as matched")
	}
	if !(Match{ClientShortCode: "WLV"}).Matched() {
		t.Fatal("client-level match must count as matched")
	}
	if !(Match{Task: &Task{ID: "1"}}).Matched() {
		t.Fatal("task match must count as matched")
	}
	if (Match{Acumatica: true, Reason: "Browser: Acumatica-related"}).Matched() {
		t.Fatal("client-less ERP signal must not count as matched")
	}
}
