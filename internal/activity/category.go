package activity

import (
	"strings"

	"github.com/femibol/propel-command-center/internal/domain"
)

var browserApps = []string{"edge", "chrome", "opera", "firefox"}

// Categorize assigns the fixed category taxonomy from the app name; the window
// title is only consulted for Outlook web sessions.
func Categorize(appName, windowTitle string) domain.Category {
	app := strings.ToLower(appName)
	switch {
	case strings.Contains(app, "claude"):
		return domain.CategoryAIResearch
	case strings.Contains(app, "teams"):
		return domain.CategoryMeetings
	case strings.Contains(app, "outlook") || strings.Contains(strings.ToLower(windowTitle), "outlook"):
		return domain.CategoryEmail
	case strings.Contains(app, "excel"):
		return domain.CategoryDataWork
	case strings.Contains(app, "reportdesigner") || strings.Contains(app, "report designer"):
		return domain.CategoryReports
	case strings.Contains(app, "snagit") || strings.Contains(app, "screenshot"):
		return domain.CategoryDocumentation
	case strings.Contains(app, "explorer"):
		return domain.CategoryFileManagement
	case IsBrowserApp(app):
		return domain.CategoryBrowser
	case strings.Contains(app, "visual studio") || strings.Contains(app, "code"):
		return domain.CategoryDevelopment
	}
	return domain.CategoryOther
}

// IsBrowserApp reports whether appName names one of the known browsers.
func IsBrowserApp(appName string) bool {
	app := strings.ToLower(appName)
	for _, b := range browserApps {
		if strings.Contains(app, b) {
			return true
		}
	}
	return false
}
