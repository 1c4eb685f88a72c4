// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum number of characters in a password.
const MinPasswordLength = 8

// WeakPasswordMessage explains the strength rule to the end user.
const WeakPasswordMessage = "Bad password: Password must be at least 8 characters long and contain uppercase, lowercase, digit, and special character."

// IsStrong reports whether candidate is at least MinPasswordLength characters
// and mixes lowercase, uppercase, digit and non-alphanumeric characters.
func IsStrong(candidate string) bool {
	if utf8.RuneCountInString(candidate) < MinPasswordLength {
		return false
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range candidate {
		if unicode.IsLower(r) {
			hasLower = true
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			hasSpecial = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSpecial
}
