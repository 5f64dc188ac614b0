// Package activity turns the monitoring agent's sample stream into blocks of
// continuous activity.
package activity

import (
	"regexp"
	"strings"
)

var (
	notificationPrefixRe = regexp.MustCompile(`^(?:\(\d+\)\s*)+`)
	// Covers "- Google Chrome" and the profile form "- Personal - Microsoft Edge".
	browserSuffixRe = regexp.MustCompile(`(?i)\s*[-–—]\s*(?:Personal\s*[-–—]\s*)?(?:Google Chrome|Microsoft\x{200B}?\s*Edge|Opera GX|Opera|Firefox)\b.*$`)
	morePagesRe     = regexp.MustCompile(`(?i)\s*and \d+ more pages?.*$`)
)

// NormalizeTitle strips volatile window-title decorations so that re-renders of
// the same logical window compare equal. The result is a fixed point:
// NormalizeTitle(NormalizeTitle(s)) == NormalizeTitle(s).
func NormalizeTitle(title string) string {
	s := strings.TrimSpace(title)
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = notificationPrefixRe.ReplaceAllString(s, "")
	s = browserSuffixRe.ReplaceAllString(s, "")
	s = morePagesRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
