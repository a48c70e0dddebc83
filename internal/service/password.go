package service

import (
	"strings"
	"unicode"

	"blog-manager/internal/domain"
)

const minPasswordLength = 8

// commonPasswords is a short deny-list of the passwords seen most often in
// breach corpora. Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password123": {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"letmein1":   {},
	"welcome1":   {},
	"admin123":   {},
	"sunshine":   {},
	"football":   {},
	"princess":   {},
	"dragon123":  {},
	"baseball":   {},
	"superman":   {},
	"monkey123":  {},
	"trustno1":   {},
}

// validatePassword enforces the registration strength policy: minimum
// length, not entirely numeric, not a known common password, and not
// trivially similar to the user's own attributes.
func validatePassword(password, email, firstName, lastName string) error {
	if len(password) < minPasswordLength {
		return domain.WeakPasswordError("must be at least 8 characters")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return domain.WeakPasswordError("too common")
	}

	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return domain.WeakPasswordError("entirely numeric")
	}

	lower := strings.ToLower(password)
	for _, attr := range userAttributes(email, firstName, lastName) {
		if len(attr) >= 4 && (strings.Contains(lower, attr) || strings.Contains(attr, lower)) {
			return domain.WeakPasswordError("too similar to account details")
		}
	}

	return nil
}

func userAttributes(email, firstName, lastName string) []string {
	var attrs []string
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		attrs = append(attrs, email)
		if at := strings.IndexByte(email, '@'); at > 0 {
			attrs = append(attrs, email[:at])
		}
	}
	if v := strings.ToLower(strings.TrimSpace(firstName)); v != "" {
		attrs = append(attrs, v)
	}
	if v := strings.ToLower(strings.TrimSpace(lastName)); v != "" {
		attrs = append(attrs, v)
	}
	return attrs
}
