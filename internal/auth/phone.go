package auth

import (
	"regexp"
	"strings"
)

// Indian mobile numbers: 10 digits, first digit 6-9.
var subscriberPattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)

// FormatPhoneNumber normalizes a raw phone number to the canonical 10-digit
// subscriber form. Spaces, hyphens and a leading "+" are stripped; a 12-digit
// number carrying the "91" country prefix loses the prefix. The function is
// idempotent: formatting an already-canonical number returns it unchanged.
func FormatPhoneNumber(raw string) (string, error) {
	p := strings.ReplaceAll(raw, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	p = strings.TrimPrefix(p, "+")

	if len(p) == 12 && strings.HasPrefix(p, "91") {
		p = p[2:]
	}

	if !subscriberPattern.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}
