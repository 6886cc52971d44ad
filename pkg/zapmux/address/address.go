// Package address canonicalizes raw recipient identifiers into the address
// form required by the messaging backend: bare phone numbers become
// digits-plus-suffix, anything already carrying a server suffix passes
// through untouched.
package address

import "strings"

// Suffix is the canonical server suffix for individual contacts.
const Suffix = "@s.whatsapp.net"

// DefaultCountryCode is prepended to short national numbers.
const DefaultCountryCode = "55"

// Config holds normalizer settings.
type Config struct {
	// CountryCode is the default country code for numbers supplied without
	// one (at most 11 digits).
	CountryCode string `yaml:"country_code"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{CountryCode: DefaultCountryCode}
}

// Normalizer formats raw recipient identifiers.
type Normalizer struct {
	countryCode string
}

// New creates a Normalizer. An empty country code falls back to the default.
func New(cfg Config) *Normalizer {
	cc := cfg.CountryCode
	if cc == "" {
		cc = DefaultCountryCode
	}
	return &Normalizer{countryCode: cc}
}

// Format canonicalizes raw into an address the backend accepts.
//
// Identifiers that already contain the "@" separator (group ids like
// "123@g.us", broadcast lists, pre-formatted contacts) are returned
// unchanged, which also makes Format idempotent. Everything else is treated
// as a phone number: non-digits are stripped, the default country code is
// prepended to short numbers that lack it, and the individual-contact suffix
// is appended.
func (n *Normalizer) Format(raw string) string {
	if strings.Contains(raw, "@") {
		return raw
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	if len(digits) <= 11 && !strings.HasPrefix(digits, n.countryCode) {
		digits = n.countryCode + digits
	}

	return digits + Suffix
}
