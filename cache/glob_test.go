package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		match   bool
	}{
		{"user:*", "user:1", true},
		{"user:*", "user:1:profile", true},
		{"user:*", "order:1", false},
		{"user:*", "prefix:user:1", false},
		{"*", "anything", true},
		{"*:profile", "user:1:profile", true},
		{"exact", "exact", true},
		{"exact", "exact2", false},
		// Regex metacharacters in keys are literal.
		{"a.b:*", "a.b:1", true},
		{"a.b:*", "axb:1", false},
		{"price[1]", "price[1]", true},
	}
	for _, tt := range tests {
		re, err := globRegexp(tt.pattern)
		assert.NoError(t, err)
		assert.Equal(t, tt.match, re.MatchString(tt.input),
			"pattern %q against %q", tt.pattern, tt.input)
	}
}
