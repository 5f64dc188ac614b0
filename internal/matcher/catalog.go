package matcher

import (
	"regexp"
	"strings"

	"github.com/femibol/propel-command-center/internal/domain"
)

var (
	wordSplitRe  = regexp.MustCompile(`[\s\-_/]+`)
	nonAlphaRe   = regexp.MustCompile(`[^a-z]`)
	minWordChars = 3
)

// entry is a task with its lowercased match keys precomputed once per request.
type entry struct {
	task        domain.Task
	name        string
	parent      string
	client      string
	clientAlpha string
	code        string
	nameWords   []string
	parentWords []string
	codeRe      *regexp.Regexp
}

type catalog []*entry

func newCatalog(tasks []domain.Task) catalog {
	out := make(catalog, 0, len(tasks))
	for _, t := range tasks {
		e := &entry{
			task:        t,
			name:        strings.ToLower(t.Name),
			parent:      strings.ToLower(t.ParentName),
			client:      strings.ToLower(t.ClientName),
			code:        strings.ToLower(t.ClientShortCode),
			nameWords:   keywords(t.Name),
			parentWords: keywords(t.ParentName),
		}
		e.clientAlpha = nonAlphaRe.ReplaceAllString(e.client, "")
		if len(e.code) >= 3 {
			e.codeRe = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(e.code) + `\b`)
		}
		out = append(out, e)
	}
	return out
}

func (c catalog) forClient(client, code string) catalog {
	var out catalog
	for _, e := range c {
		if (code != "" && e.task.ClientShortCode == code) || (client != "" && e.task.ClientName == client) {
			out = append(out, e)
		}
	}
	return out
}

// keywords splits s on whitespace, dashes, underscores and slashes and keeps
// lowercased words of at least three characters.
func keywords(s string) []string {
	var out []string
	for _, w := range wordSplitRe.Split(strings.ToLower(s), -1) {
		if len(w) >= minWordChars {
			out = append(out, w)
		}
	}
	return out
}

type scored struct {
	entry   *entry
	score   float64
	keyword string
}

// bestTask scores every entry by task-name words found in text (1 each) and
// parent-name words (0.5 each). Ties keep the earliest entry.
func (c catalog) bestTask(text string) *scored {
	text = strings.ToLower(text)
	var best *scored
	for _, e := range c {
		var score float64
		var matched []string
		for _, w := range e.nameWords {
			if strings.Contains(text, w) {
				score++
				matched = append(matched, w)
			}
		}
		keyword := strings.Join(matched, ", ")
		for _, w := range e.parentWords {
			if strings.Contains(text, w) {
				score += 0.5
				if keyword == "" {
					keyword = w
				}
			}
		}
		if score > 0 && (best == nil || score > best.score) {
			best = &scored{entry: e, score: score, keyword: keyword}
		}
	}
	return best
}
