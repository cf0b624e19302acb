package comment

import (
	"regexp"
	"strings"
)

// defaultBlockedKeywords always reject a comment.
var defaultBlockedKeywords = []string{
	"casino", "viagra", "cialis", "gambling", "lottery", "crypto giveaway",
}

// isBlocked reports whether text matches a blocked keyword. Keywords are matched as
// case-insensitive substrings first and then, if they compile, as regular expressions.
func isBlocked(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	all := make([]string, 0, len(keywords)+len(defaultBlockedKeywords))
	all = append(all, keywords...)
	all = append(all, defaultBlockedKeywords...)

	for _, kw := range all {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
		if re, err := regexp.Compile("(?i)" + kw); err == nil && re.MatchString(text) {
			return true
		}
	}
	return false
}
