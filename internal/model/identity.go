package model

import "strings"

// NormalizeIdentity strips surrounding whitespace and a leading "@".
// Casing is preserved for display.
func NormalizeIdentity(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "@")
}

// IdentityKey returns the comparison key for an identity.
func IdentityKey(s string) string {
	return strings.ToLower(NormalizeIdentity(s))
}

// SameIdentity reports whether a and b name the same user.
func SameIdentity(a, b string) bool {
	return IdentityKey(a) == IdentityKey(b)
}
