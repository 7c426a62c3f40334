package payment

import "strings"

// NormalizePhone strips separators and restores the leading zero of a
// nine digit local number (911234567 -> 0911234567).
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	if len(normalized) == 9 && normalized[0] != '0' {
		normalized = "0" + normalized
	}
	return normalized
}
