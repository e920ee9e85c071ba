package cache

import (
	"regexp"
	"strings"
)

// globRegexp compiles a glob pattern into an anchored regular expression.
// Only `*` (any run of characters) is special; everything else matches
// literally. This mirrors the subset of Redis MATCH syntax the platform
// uses for invalidation, so the same pattern drives both the local regex
// sweep and the remote SCAN.
func globRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		if r == '*' {
			b.WriteString(".*")
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
