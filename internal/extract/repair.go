package extract

import (
	"regexp"
	"strings"
)

// repairFunc is a pure string transform applied during the repair rung.
type repairFunc func(string) string

// repairChain is the fixed repair order. Each transform is independent
// and unit-testable; Repair applies them cumulatively.
var repairChain = []repairFunc{
	normalizeSingleQuotes,
	quoteUnquotedKeys,
	quoteBareValues,
	stripTrailingCommas,
	escapeControlChars,
}

// Repair applies the full repair chain to candidate.
func Repair(candidate string) string {
	out := candidate
	for _, fn := range repairChain {
		out = fn(out)
	}
	return out
}

var (
	singleQuotedRe  = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	bareValueRe     = regexp.MustCompile(`([:\[,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)(\s*[,\]\}])`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// jsonLiterals are bare words that are valid JSON and must stay unquoted.
var jsonLiterals = map[string]bool{
	"true":  true,
	"false": true,
	"null":  true,
}

// normalizeSingleQuotes rewrites single-quoted strings to double-quoted
// form, escaping any double quotes inside the value.
func normalizeSingleQuotes(s string) string {
	return singleQuotedRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[1 : len(m)-1]
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
		return `"` + inner + `"`
	})
}

// quoteUnquotedKeys quotes bare object keys: {approach: -> {"approach":.
func quoteUnquotedKeys(s string) string {
	return unquotedKeyRe.ReplaceAllString(s, `$1"$2"$3`)
}

// quoteBareValues quotes bare words in value position, leaving JSON
// literals alone. Runs to a bounded fixpoint because adjacent list items
// share a delimiter and a single regex pass cannot rewrite both.
func quoteBareValues(s string) string {
	for i := 0; i < 4; i++ {
		next := bareValueRe.ReplaceAllStringFunc(s, func(m string) string {
			groups := bareValueRe.FindStringSubmatch(m)
			if jsonLiterals[groups[2]] {
				return m
			}
			return groups[1] + `"` + groups[2] + `"` + groups[3]
		})
		if next == s {
			break
		}
		s = next
	}
	return s
}

// stripTrailingCommas removes commas that directly precede a closing
// bracket or brace.
func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, `$1`)
}

// escapeControlChars escapes literal newline and tab characters that
// appear inside double-quoted string values.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			}
		} else if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
