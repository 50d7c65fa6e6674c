package util

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"net/mail"
	"strings"
)

// SanitizeInput trims whitespace and escapes HTML/script-like characters.
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return html.EscapeString(s)
}

// NormalizeEmail lowercases and trims an email address so lookups and
// derived credentials are stable regardless of how the caller typed it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether the address parses as a bare RFC 5322 address.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// HashEmail returns the hex SHA-256 of the normalized address, used as the
// lookup key so raw emails never appear in partition keys or event streams.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// NormalizePhone strips common formatting characters from a phone number.
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(strings.TrimSpace(phone))
}

// HashPhone returns the hex SHA-256 of the normalized phone number.
func HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(NormalizePhone(phone)))
	return hex.EncodeToString(sum[:])
}

func ContainsSuspicious(s string) bool {
	badChars := []string{"<", ">", "$", "{", "}", "script", "onerror", "onload"}
	lowered := strings.ToLower(s)
	for _, c := range badChars {
		if strings.Contains(lowered, c) {
			return true
		}
	}
	return false
}
