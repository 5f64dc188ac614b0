package matcher

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/femibol/propel-command-center/internal/activity"
	"github.com/femibol/propel-command-center/internal/domain"
)

const (
	acumaticaUnknownClient = "Acumatica (Unknown)"
	acumaticaUnknownCode   = "ACU"
)

var (
	acumaticaHostRe = regexp.MustCompile(`([a-z0-9-]+)\.acumatica\.com`)
	screenCodeRe    = regexp.MustCompile(`(?i)[a-z]{2}\d{6}`)
)

// erpPhrases are page names that mark a browser tab as ERP work.
var erpPhrases = []string{
	"purchase order", "sales order", "invoice", "journal transaction",
	"general ledger", "inventory", "warehouse", "stock item", "non-stock",
	"import scenario", "import by scenario", "data provider",
	"business account", "customer", "vendor", "employee",
	"accounts payable", "accounts receivable", "cash management",
	"project", "expense claim", "time card", "service order",
	"bill of materials", "production order", "manufacturing",
	"bank transaction", "reconciliation", "tax", "report",
	"notification", "automation", "generic inquiry", "dashboard",
	"acumatica", "erp",
}

// hit is the uniform heuristic result. A hit with neither task nor code is a
// rejection that only contributes its reason.
type hit struct {
	task       *domain.Task
	client     string
	code       string
	confidence domain.Confidence
	reason     string
	acumatica  bool
}

func (h *hit) usable() bool {
	return h.task != nil || h.code != ""
}

func taskHit(e *entry, confidence domain.Confidence, reason string) *hit {
	t := e.task
	return &hit{
		task:       &t,
		client:     t.ClientName,
		code:       t.ClientShortCode,
		confidence: confidence,
		reason:     reason,
	}
}

// blockContext is what every heuristic sees for one block.
type blockContext struct {
	block    domain.Block
	title    string // lowercased normalized title
	url      string // lowercased, empty when absent or unparseable
	catalog  catalog
	mappings []domain.DomainMapping
}

func newBlockContext(b domain.Block, c catalog, mappings []domain.DomainMapping) *blockContext {
	ctx := &blockContext{
		block:    b,
		title:    strings.ToLower(b.Title),
		catalog:  c,
		mappings: mappings,
	}
	if raw := strings.TrimSpace(b.URL); raw != "" {
		if _, err := url.Parse(raw); err == nil {
			ctx.url = strings.ToLower(raw)
		}
	}
	return ctx
}

func (c *blockContext) mapping() *domain.DomainMapping {
	if c.url == "" {
		return nil
	}
	for i := range c.mappings {
		d := strings.ToLower(strings.TrimSpace(c.mappings[i].Domain))
		if d != "" && strings.Contains(c.url, d) {
			return &c.mappings[i]
		}
	}
	return nil
}

type heuristic struct {
	name string
	fn   func(*blockContext) *hit
}

func defaultHeuristics() []heuristic {
	return []heuristic{
		{"url-domain", byURLDomain},
		{"acumatica-subdomain", byAcumaticaSubdomain},
		{"screen-code", byScreenCode},
		{"client-name", byClientName},
		{"client-code", byClientCode},
		{"keywords", byKeywords},
		{"browser-keyword", byBrowserKeyword},
	}
}

func byURLDomain(c *blockContext) *hit {
	m := c.mapping()
	if m == nil {
		return nil
	}
	clientTasks := c.catalog.forClient(m.Client, m.ClientShortCode)
	if len(clientTasks) == 0 {
		return &hit{
			client:     m.Client,
			code:       m.ClientShortCode,
			confidence: domain.ConfidenceLow,
			reason:     fmt.Sprintf("URL matches %s (%s)", m.Client, m.Domain),
		}
	}

	domainKey := strings.ToLower(strings.TrimSpace(m.Domain))
	path := ""
	if parts := strings.SplitN(c.url, domainKey, 2); len(parts) == 2 {
		path = parts[1]
	}
	if best := clientTasks.bestTask(path); best != nil && best.score >= 1 {
		confidence := domain.ConfidenceMedium
		if best.score > 2 {
			confidence = domain.ConfidenceHigh
		}
		h := taskHit(best.entry, confidence, fmt.Sprintf("URL domain + keyword: %q", best.keyword))
		h.client, h.code = m.Client, m.ClientShortCode
		return h
	}

	h := taskHit(clientTasks[0], domain.ConfidenceLow, fmt.Sprintf("URL matches client %s", m.Client))
	h.client, h.code = m.Client, m.ClientShortCode
	return h
}

func byAcumaticaSubdomain(c *blockContext) *hit {
	if c.url == "" || c.mapping() != nil || !strings.Contains(c.url, ".acumatica.com") {
		return nil
	}
	sm := acumaticaHostRe.FindStringSubmatch(c.url)
	if sm == nil {
		return nil
	}
	sub := sm[1]
	for _, e := range c.catalog {
		if fuzzyContains(e.clientAlpha, sub) || fuzzyContains(e.code, sub) {
			return taskHit(e, domain.ConfidenceMedium, fmt.Sprintf("Acumatica URL subdomain %q ~ %s", sub, e.task.ClientShortCode))
		}
	}
	return &hit{
		client:     acumaticaUnknownClient,
		code:       acumaticaUnknownCode,
		confidence: domain.ConfidenceLow,
		reason:     fmt.Sprintf("Acumatica URL: %s.acumatica.com", sub),
		acumatica:  true,
	}
}

// fuzzyContains is a bidirectional substring test that never matches on empty keys.
func fuzzyContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func byScreenCode(c *blockContext) *hit {
	if c.title == "" {
		return nil
	}
	code := screenCodeRe.FindString(c.title)
	if code == "" {
		return nil
	}
	for _, e := range c.catalog {
		if strings.Contains(e.name, code) {
			return taskHit(e, domain.ConfidenceHigh, fmt.Sprintf("Acumatica screen %s in task name", strings.ToUpper(code)))
		}
	}
	return nil
}

func byClientName(c *blockContext) *hit {
	if c.title == "" {
		return nil
	}
	for _, e := range c.catalog {
		if len(e.client) >= 4 && strings.Contains(c.title, e.client) {
			return taskHit(e, domain.ConfidenceMedium, fmt.Sprintf("Title contains client %q", e.task.ClientName))
		}
	}
	return nil
}

func byClientCode(c *blockContext) *hit {
	if c.title == "" {
		return nil
	}
	for _, e := range c.catalog {
		if e.codeRe != nil && e.codeRe.MatchString(c.block.Title) {
			return taskHit(e, domain.ConfidenceLow, fmt.Sprintf("Title contains client code %q", e.task.ClientShortCode))
		}
	}
	return nil
}

func byKeywords(c *blockContext) *hit {
	if c.title == "" {
		return nil
	}
	best := c.catalog.bestTask(c.title)
	if best == nil || best.score < 1 {
		return nil
	}
	confidence := domain.ConfidenceLow
	if best.score >= 2 {
		confidence = domain.ConfidenceMedium
	}
	return taskHit(best.entry, confidence, fmt.Sprintf("Title keyword: %q", best.keyword))
}

func byBrowserKeyword(c *blockContext) *hit {
	if c.title == "" {
		return nil
	}
	if c.block.Category != domain.CategoryBrowser && !activity.IsBrowserApp(c.block.App) {
		return nil
	}
	for _, kw := range erpPhrases {
		if !strings.Contains(c.title, kw) {
			continue
		}
		for _, e := range c.catalog {
			if (e.client != "" && strings.Contains(c.title, e.client)) ||
				(len(e.code) >= 3 && strings.Contains(c.title, e.code)) {
				return taskHit(e, domain.ConfidenceLow, fmt.Sprintf("Browser: Acumatica %q + client hint", kw))
			}
		}
		return &hit{
			confidence: domain.ConfidenceLow,
			reason:     fmt.Sprintf("Browser: Acumatica-related (%q)", kw),
			acumatica:  true,
		}
	}
	return nil
}
