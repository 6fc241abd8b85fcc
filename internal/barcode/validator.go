// Package barcode decides whether a decoded string is an acceptable product code.
package barcode

import "regexp"

// MinLength is the shortest code the scanner accepts.
const MinLength = 8

var (
	ean13        = regexp.MustCompile(`^\d{13}$`)
	ean8         = regexp.MustCompile(`^\d{8}$`)
	upcA         = regexp.MustCompile(`^\d{12}$`)
	alphanumeric = regexp.MustCompile(`^[A-Za-z0-9.-]+$`)
)

// Validator holds the acceptance policy. The zero value accepts EAN-13, EAN-8 and
// UPC-A only.
type Validator struct {
	// AllowAlphanumeric additionally accepts shop-printed labels made of letters,
	// digits, dots and dashes. The MinLength rule still applies to them.
	AllowAlphanumeric bool
}

// IsValid reports whether code is acceptable under the default policy.
func IsValid(code string) bool {
	return Validator{}.IsValid(code)
}

func (v Validator) IsValid(code string) bool {
	if len(code) < MinLength {
		return false
	}
	if ean13.MatchString(code) || ean8.MatchString(code) || upcA.MatchString(code) {
		return true
	}
	return v.AllowAlphanumeric && alphanumeric.MatchString(code)
}
