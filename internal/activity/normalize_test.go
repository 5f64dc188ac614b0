package activity

import (
	"testing"

	"github.com/femibol/propel-command-center/internal/domain"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"(3) Inbox - Outlook", "Inbox - Outlook"},
		{"(12) (2) Chat", "Chat"},
		{"AP303000 - Acme Corp - Google Chrome", "AP303000 - Acme Corp"},
		{"Sales Orders – Microsoft Edge", "Sales Orders"},
		{"Vendors - Personal - Microsoft Edge", "Vendors"},
		{"Invoices and 5 more pages - Personal - Microsoft​ Edge", "Invoices"},
		{"Journal Transactions and 1 more page", "Journal Transactions"},
		{"Dashboard - Opera GX", "Dashboard"},
		{"Operations Review - Notes", "Operations Review - Notes"},
		{"Budget.xlsx - Excel", "Budget.xlsx - Excel"},
	}

	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Fatalf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTitleIdempotent(t *testing.T) {
	inputs := []string{
		"(3) AP303000 - Acme Corp - Google Chrome",
		" (1) Inbox",
		"Report - Firefoxand 3 more pages",
		"x and 2 more pages - Opera",
		"(4)",
		"Plain title",
		"- Google Chrome",
	}
	for _, in := range inputs {
		once := NormalizeTitle(in)
		if twice := NormalizeTitle(once); twice != once {
			t.Fatalf("NormalizeTitle not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		app   string
		title string
		want  domain.Category
	}{
		{"Claude", "", domain.CategoryAIResearch},
		{"Microsoft Teams", "", domain.CategoryMeetings},
		{"OUTLOOK.EXE", "", domain.CategoryEmail},
		{"Google Chrome", "Mail - Outlook", domain.CategoryEmail},
		{"Microsoft Excel", "", domain.CategoryDataWork},
		{"ReportDesigner", "", domain.CategoryReports},
		{"Snagit Editor", "", domain.CategoryDocumentation},
		{"Windows Explorer", "", domain.CategoryFileManagement},
		{"Google Chrome", "", domain.CategoryBrowser},
		{"Opera", "", domain.CategoryBrowser},
		{"Visual Studio Code", "", domain.CategoryDevelopment},
		{"Spotify", "", domain.CategoryOther},
		{"", "", domain.CategoryOther},
	}
	for _, tt := range tests {
		if got := Categorize(tt.app, tt.title); got != tt.want {
			t.Fatalf("Categorize(%q, %q) = %q, want %q", tt.app, tt.title, got, tt.want)
		}
	}
}
