package domain

// Task is a client engagement task from the project-board catalog. Read-only to the matcher.
type Task struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ParentName      string `json:"parentName"`
	ClientName      string `json:"clientName"`
	ClientShortCode string `json:"clientShortCode"`
	BoardID         string `json:"boardId,omitempty"`
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Match is a block together with its attribution. A Match with no Task but a
// ClientShortCode is a client-level attribution and still counts as matched.
type Match struct {
	Block
	Task            *Task      `json:"matchedTask"`
	Client          string     `json:"matchedClient,omitempty"`
	ClientShortCode string     `json:"matchedClientShort,omitempty"`
	Confidence      Confidence `json:"matchConfidence,omitempty"`
	Reason          string     `json:"matchReason"`
	// Acumatica marks ERP work whose client could not be determined.
	Acumatica bool `json:"isAcumatica,omitempty"`
}

func (m Match) Matched() bool {
	return m.Task != nil || m.ClientShortCode != ""
}

// DomainMapping routes URLs containing Domain to a client.
type DomainMapping struct {
	Domain          string `yaml:"domain" json:"domain"`
	Client          string `yaml:"client" json:"client"`
	ClientShortCode string `yaml:"client_short_code" json:"clientShortCode"`
}

// ClaudeSession is a block attributed to AI-assistant usage.
type ClaudeSession struct {
	Block
	Topic      string     `json:"topic"`
	Task       *Task      `json:"matchedTask"`
	Confidence Confidence `json:"confidence"`
}

// Special task ids an external classifier may return instead of a catalog id.
const (
	SuggestionGeneral = "GENERAL"
	SuggestionSkip    = "SKIP"
)

// Suggestion is one external-classifier verdict for an unmatched block.
type Suggestion struct {
	BlockID string `json:"blockId"`
	TaskID  string `json:"taskId"`
	Client  string `json:"client,omitempty"`
	Reason  string `json:"reason"`
}
