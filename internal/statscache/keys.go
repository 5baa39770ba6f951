package statscache

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Key builds a cache key for one stats view. The readable part is sanitized
// for logs and redis-cli; the hash suffix keeps keys distinct when the
// params carry characters the sanitizer folds together.
func Key(view, dataset, params string) string {
	viewNorm := sanitize(strings.TrimSpace(view))
	dsNorm := sanitize(strings.TrimSpace(dataset))
	paramsNorm := strings.TrimSpace(params)
	paramsSafe := sanitize(paramsNorm)

	const maxParamsLen = 96
	if len(paramsSafe) > maxParamsLen {
		paramsSafe = paramsSafe[:maxParamsLen]
	}

	sum := xxhash.Sum64String(paramsNorm)
	return fmt.Sprintf("stats:%s:%s:%s:q=%016x", viewNorm, dsNorm, paramsSafe, sum)
}

func sanitize(s string) string {
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
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=':
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
		unicode.IsDigit(r)
}
