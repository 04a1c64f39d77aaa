// Package pathglob matches forward-slash relative paths against glob-style
// exclusion patterns.
//
// Patterns are anchored at both ends and matched case-insensitively,
// regardless of the operating system's own case rules:
//
//	`**/` matches zero or more leading path segments (with their slashes)
//	`**`  matches zero or more whole path segments
//	`*`   matches within a single segment, never across a slash
//
// Everything else is literal.
package pathglob

import (
	"regexp"
	"strings"
	"sync"
)

var (
	compiledMu sync.RWMutex
	compiled   = make(map[string]*regexp.Regexp)
)

// Compile translates a glob pattern into an anchored case-insensitive regexp.
func Compile(pattern string) (*regexp.Regexp, error) {
	compiledMu.RLock()
	re, ok := compiled[pattern]
	compiledMu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(translate(pattern))
	if err != nil {
		return nil, err
	}

	compiledMu.Lock()
	compiled[pattern] = re
	compiledMu.Unlock()
	return re, nil
}

func translate(pattern string) string {
	var b strings.Builder
	b.WriteString(`(?i)\A`)

	for i := 0; i < len(pattern); {
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			// any number of whole segments, slash included
			b.WriteString(`(?:[^/]+/)*`)
			i += 3
		case strings.HasPrefix(pattern[i:], "**"):
			// any number of segments plus one more, or nothing at all
			b.WriteString(`(?:(?:[^/]+/)*[^/]+)?`)
			i += 2
		case pattern[i] == '*':
			b.WriteString(`[^/]*`)
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(pattern[i])))
			i++
		}
	}

	b.WriteString(`\z`)
	return b.String()
}

// Matches reports whether path matches pattern. Invalid patterns never match.
func Matches(path, pattern string) bool {
	re, err := Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// MatchesAny reports whether path matches at least one of patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if Matches(path, pattern) {
			return true
		}
	}
	return false
}
