package domain

import "time"

// WeekHours holds one value per weekday. Values are quarter hours once rounded.
type WeekHours struct {
	Mon float64 `json:"mon"`
	Tue float64 `json:"tue"`
	Wed float64 `json:"wed"`
	Thu float64 `json:"thu"`
	Fri float64 `json:"fri"`
	Sat float64 `json:"sat"`
	Sun float64 `json:"sun"`
}

func (w WeekHours) Get(day time.Weekday) float64 {
	switch day {
	case time.Monday:
		return w.Mon
	case time.Tuesday:
		return w.Tue
	case time.Wednesday:
		return w.Wed
	case time.Thursday:
		return w.Thu
	case time.Friday:
		return w.Fri
	case time.Saturday:
		return w.Sat
	default:
		return w.Sun
	}
}

// With returns a copy of w with day set to v.
func (w WeekHours) With(day time.Weekday, v float64) WeekHours {
	switch day {
	case time.Monday:
		w.Mon = v
	case time.Tuesday:
		w.Tue = v
	case time.Wednesday:
		w.Wed = v
	case time.Thursday:
		w.Thu = v
	case time.Friday:
		w.Fri = v
	case time.Saturday:
		w.Sat = v
	default:
		w.Sun = v
	}
	return w
}

func (w WeekHours) Total() float64 {
	var total float64
	for day := time.Sunday; day <= time.Saturday; day++ {
		total += w.Get(day)
	}
	return total
}

// TimesheetRow accumulates matched time for one task, or one client when no task matched.
type TimesheetRow struct {
	ID              string    `json:"id"`
	Task            *Task     `json:"task"`
	Client          string    `json:"client"`
	ClientShortCode string    `json:"clientShort"`
	ProjectName     string    `json:"projectName"`
	ParentName      string    `json:"parentName"`
	Hours           WeekHours `json:"hours"`
	Sources         []Match   `json:"sources"`
	IsManual        bool      `json:"isManual"`
}

type Timesheet struct {
	Rows      []TimesheetRow `json:"rows"`
	Unmatched []Match        `json:"unmatched"`
}

// WeekRangeAt returns Monday 00:00 and the following Monday 00:00 for the week containing now.
func WeekRangeAt(now time.Time) (time.Time, time.Time) {
	weekday := now.Weekday()
	if weekday == time.Sunday {
		weekday = 7
	}
	daysFromMonday := int(weekday) - int(time.Monday)
	monday := time.Date(now.Year(), now.Month(), now.Day()-daysFromMonday, 0, 0, 0, 0, now.Location())
	return monday, monday.AddDate(0, 0, 7)
}

// Weekday parses a DayLayout date and returns its calendar weekday.
func Weekday(day string) (time.Weekday, bool) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return 0, false
	}
	return t.Weekday(), true
}
