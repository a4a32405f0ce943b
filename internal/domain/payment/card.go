package payment

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvRe    = regexp.MustCompile(`^\d{3,4}$`)
)

// Well-known gateway test numbers always approve in simulation, even when
// they end in a reserved suffix.
var approvedTestCards = map[string]bool{
	"4111111111111111": true,
	"4242424242424242": true,
	"5555555555554444": true,
}

// Reserved suffixes for deterministic offline outcomes
const (
	declinedSuffix          = "0000"
	insufficientLimitSuffix = "1111"
)

// CardDetails is the card data submitted by the shopper
type CardDetails struct {
	Number string
	Expiry string
	CVV    string
	Holder string
}

// Digits returns the card number without whitespace
func (c CardDetails) Digits() string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, c.Number)
}

// Last4 returns the last four digits for display
func (c CardDetails) Last4() string {
	d := c.Digits()
	if len(d) < 4 {
		return d
	}
	return d[len(d)-4:]
}

// ValidateCard checks the card number (13 to 19 digits), expiry (MM/YY) and
// CVV (3 or 4 digits)
func ValidateCard(c CardDetails) error {
	digits := c.Digits()
	if len(digits) < 13 || len(digits) > 19 || !allDigits(digits) {
		return ErrInvalidCardNumber
	}
	if !expiryRe.MatchString(strings.TrimSpace(c.Expiry)) {
		return ErrInvalidCardExpiry
	}
	if !cvvRe.MatchString(strings.TrimSpace(c.CVV)) {
		return ErrInvalidCVV
	}
	return nil
}

// SimulateCard returns the deterministic offline verdict for a card number:
// nil when approved, ErrCardDeclined or ErrInsufficientLimit otherwise
func SimulateCard(number string) error {
	digits := CardDetails{Number: number}.Digits()
	if approvedTestCards[digits] {
		return nil
	}
	switch {
	case strings.HasSuffix(digits, declinedSuffix):
		return ErrCardDeclined
	case strings.HasSuffix(digits, insufficientLimitSuffix):
		return ErrInsufficientLimit
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
