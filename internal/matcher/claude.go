package matcher

import (
	"regexp"
	"strings"

	"github.com/femibol/propel-command-center/internal/domain"
)

const generalClaudeTopic = "General Claude session"

var claudeDecorations = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^claude\s*[-–—]?\s*`),
	regexp.MustCompile(`(?i)\s*[-–—]?\s*claude$`),
	regexp.MustCompile(`(?i)\s*[-–—]\s*opera.*$`),
}

// ClaudeTopic lowercases a session title and strips assistant and browser
// decoration from it.
func ClaudeTopic(title string) string {
	topic := strings.ToLower(title)
	for _, re := range claudeDecorations {
		topic = re.ReplaceAllString(topic, "")
	}
	return strings.TrimSpace(topic)
}

// ClaudeSessions picks the AI-assistant blocks out of blocks and guesses
// which task each conversation was about from its topic.
func ClaudeSessions(blocks []domain.Block, tasks []domain.Task) []domain.ClaudeSession {
	cat := newCatalog(tasks)
	var out []domain.ClaudeSession
	for _, b := range blocks {
		if !strings.Contains(strings.ToLower(b.App), "claude") && !strings.Contains(strings.ToLower(b.Title), "claude") {
			continue
		}
		topic := ClaudeTopic(b.Title)
		if topic == "" || topic == "claude" {
			out = append(out, domain.ClaudeSession{Block: b, Topic: generalClaudeTopic, Confidence: domain.ConfidenceNone})
			continue
		}

		words := keywords(topic)
		var best *entry
		bestScore := 0
		for _, e := range cat {
			score := 0
			for _, w := range words {
				if strings.Contains(e.name, w) {
					score += 2
				}
				if strings.Contains(e.parent, w) {
					score++
				}
			}
			if score > bestScore {
				best, bestScore = e, score
			}
		}

		s := domain.ClaudeSession{Block: b, Topic: topic, Confidence: domain.ConfidenceLow}
		switch {
		case bestScore >= 3:
			s.Confidence = domain.ConfidenceHigh
		case bestScore >= 2:
			s.Confidence = domain.ConfidenceMedium
		}
		if bestScore >= 2 {
			t := best.task
			s.Task = &t
		}
		out = append(out, s)
	}
	return out
}

// TotalMinutes sums session durations.
func TotalMinutes(sessions []domain.ClaudeSession) float64 {
	var total float64
	for _, s := range sessions {
		total += s.DurationMinutes
	}
	return total
}
