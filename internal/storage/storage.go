// Package storage holds the types shared by activity-sample stores.
package storage

import (
	"context"
	"errors"

	"github.com/femibol/propel-command-center/internal/domain"
)

// ErrUnavailable is returned when the monitoring agent's database cannot be opened.
var ErrUnavailable = errors.New("activity database unavailable")

// SampleSource yields capture samples for an inclusive date range, ordered by capture time.
type SampleSource interface {
	Entries(ctx context.Context, start, end string) ([]domain.CaptureSample, error)
}

type Stats struct {
	Connected bool   `json:"connected"`
	Count     int64  `json:"count"`
	MinDate   string `json:"minDate,omitempty"`
	MaxDate   string `json:"maxDate,omitempty"`
	DBPath    string `json:"dbPath,omitempty"`
}

// AppUsage is time per app. The agent captures one sample per second.
type AppUsage struct {
	App     string  `json:"app"`
	Seconds int64   `json:"seconds"`
	Hours   float64 `json:"hours"`
}

// PublicSettings is the subset of agent settings safe to expose.
type PublicSettings struct {
	UserName      any  `json:"userName"`
	UserEmail     any  `json:"userEmail"`
	WorkspaceName any  `json:"workspaceName"`
	HasToken      bool `json:"hasToken"`
}

func Redact(settings map[string]any) PublicSettings {
	return PublicSettings{
		UserName:      settings["user_name"],
		UserEmail:     settings["user_email"],
		WorkspaceName: settings["workspace_name"],
		HasToken:      truthy(settings["token"]),
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	default:
		return true
	}
}
