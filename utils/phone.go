package utils

import "strings"

// NormalizePhone keeps digits and a single leading '+'.
// "+1 (415) 555-1023" becomes "+14155551023".
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneDigitCount counts the digits of a phone number
func PhoneDigitCount(raw string) int {
	n := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// IsValidPhone reports whether raw is non-empty and has at least MinPhoneDigits digits
func IsValidPhone(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	return PhoneDigitCount(raw) >= MinPhoneDigits
}
