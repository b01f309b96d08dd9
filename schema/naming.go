package schema

import (
	"strings"
	"unicode"
)

// SnakeCase converts a Go identifier to snake_case, keeping acronyms
// together: "HTTPPort" becomes "http_port", "MaxConns" becomes "max_conns".
func SnakeCase(name string) string {
	runes := []rune(name)
	b := &strings.Builder{}
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
