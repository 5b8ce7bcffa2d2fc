package types

import (
	"fmt"
	"strings"
)

// Phone is a subscriber number split from its dialing prefix. The two parts
// are stored separately because OTP challenges and SMS routing key off the
// pair, not the joined string.
type Phone struct {
	CountryCode string `json:"country_code" validate:"required,startswith=+,min=2,max=5"`
	Number      string `json:"number" validate:"required,numeric,min=6,max=12"`
}

// E164 joins the prefix and subscriber number.
func (p Phone) E164() string {
	return p.CountryCode + p.Number
}

// Key returns the canonical lookup key for the pair.
func (p Phone) Key() string {
	return fmt.Sprintf("%s:%s", p.CountryCode, p.Number)
}

// Masked hides all but the last three digits for log output.
func (p Phone) Masked() string {
	n := p.Number
	if len(n) <= 3 {
		return p.CountryCode + strings.Repeat("*", len(n))
	}
	return p.CountryCode + strings.Repeat("*", len(n)-3) + n[len(n)-3:]
}

// IsZero reports whether both parts are empty.
func (p Phone) IsZero() bool {
	return p.CountryCode == "" && p.Number == ""
}
