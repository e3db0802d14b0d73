package utils

import (
	"regexp"
	"strings"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// PasswordSpecialChars are the accepted non-alphanumeric password characters
const PasswordSpecialChars = "@$!%*#?&"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// ValidatePassword checks the password policy: at least MinPasswordLength
// characters built only from letters, digits and PasswordSpecialChars, with at
// least one of each class.
func ValidatePassword(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}

	var hasLetter, hasDigit, hasSpecial bool
	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z', 'a' <= char && char <= 'z':
			hasLetter = true
		case '0' <= char && char <= '9':
			hasDigit = true
		case strings.ContainsRune(PasswordSpecialChars, char):
			hasSpecial = true
		default:
			return false
		}
	}

	return hasLetter && hasDigit && hasSpecial
}

// NormalizeEmail trims surrounding whitespace. Emails are case-sensitive
// principals, so the case is preserved.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
