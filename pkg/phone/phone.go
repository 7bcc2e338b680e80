// Package phone provides normalization utilities for customer phone numbers.
// Numbers arrive from the booking database in whatever shape the receptionist
// typed them ("(11) 91234-5678", "+55 11 91234 5678", ...) and must be reduced
// to a bare MSISDN before they can be used as a gateway address.
package phone

import "strings"

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize converts a raw phone number into a full MSISDN with the given
// country code prefix. Formatting characters are stripped and the country
// code is prepended unless the number already carries it.
// Returns "" for input with no digits at all.
func Normalize(raw, countryCode string) string {
	digits := Digits(raw)
	if digits == "" {
		return ""
	}
	if countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return digits
}

// ChatID converts a raw phone number into the <msisdn>@c.us addressing form
// used by session-based gateways.
func ChatID(raw, countryCode string) string {
	msisdn := Normalize(raw, countryCode)
	if msisdn == "" {
		return ""
	}
	return msisdn + "@c.us"
}
