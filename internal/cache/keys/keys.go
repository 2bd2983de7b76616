// Package keys builds cache keys from fetcher call parameters.
package keys

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// sep never appears in postal codes, ratings or addresses, so joining with it
// keeps distinct tuples distinct.
const sep = "\x1f"

// Query derives a cache key for an upstream call. Parts are taken exactly as
// given: two calls that differ only in parameter order produce different keys.
func Query(source string, parts ...string) string {
	joined := strings.Join(parts, sep)
	sum := xxhash.Sum64String(joined)

	safe := sanitizeForKey(joined)
	const maxTextLen = 120
	if len(safe) > maxTextLen {
		safe = safe[:maxTextLen]
	}

	return fmt.Sprintf("%s:%s:k=%016x", source, safe, sum)
}

// sanitizeForKey keeps the key readable in logs and redis; identity is
// carried by the hash suffix, not by this text.
func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == ',' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
