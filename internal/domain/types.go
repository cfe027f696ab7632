package domain

import "strings"

// Status represents a lightweight state value.
type Status string

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// NormalizeEmail produces the key every ledger partition is stored under.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
