package domain

import "time"

const (
	// DayLayout is the calendar-date form used for Block.Day and request ranges.
	DayLayout = "2006-01-02"
	// CaptureLayout is the agent's UTC capture timestamp form.
	CaptureLayout = "2006-01-02 15:04:05"
)

// CaptureSample is one passive screen-activity observation from the monitoring agent.
type CaptureSample struct {
	AppName     string
	WindowTitle string
	DetailURL   string
	CapturedAt  time.Time // UTC; zero when the agent row was malformed
}

type Category string

const (
	CategoryBrowser        Category = "Browser"
	CategoryMeetings       Category = "Meetings"
	CategoryEmail          Category = "Email"
	CategoryDataWork       Category = "Data Work"
	CategoryReports        Category = "Reports"
	CategoryDevelopment    Category = "Development"
	CategoryDocumentation  Category = "Documentation"
	CategoryFileManagement Category = "File Management"
	CategoryAIResearch     Category = "AI/Research"
	CategoryOther          Category = "Other"
)

// Block is a contiguous span of one (app, normalized title) context.
type Block struct {
	ID              string    `json:"id"`
	StartUTC        time.Time `json:"startUtc"`
	EndUTC          time.Time `json:"endUtc"`
	DurationMinutes float64   `json:"durationMinutes"`
	DurationHours   float64   `json:"durationHours"`
	App             string    `json:"app"`
	Title           string    `json:"title"`
	RawTitle        string    `json:"rawTitle"`
	Category        Category  `json:"category"`
	URL             string    `json:"url,omitempty"`
	SampleCount     int       `json:"entryCount"`
	Day             string    `json:"day"`
}

// BlockSummary totals a set of blocks.
type BlockSummary struct {
	TotalMinutes float64              `json:"totalMinutes"`
	TotalHours   float64              `json:"totalHours"`
	BlockCount   int                  `json:"blockCount"`
	ByCategory   map[Category]float64 `json:"byCategory"`
	ByApp        map[string]float64   `json:"byApp"`
}
