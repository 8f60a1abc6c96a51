package constants

import "strings"

// IsReceived reports whether a raw transaction type describes incoming money.
func IsReceived(raw string) bool {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	return strings.Contains(normalized, "pagó") || strings.Contains(normalized, "received")
}

// IsPaid reports whether a raw transaction type describes outgoing money.
func IsPaid(raw string) bool {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	return strings.Contains(normalized, "pagaste") || strings.Contains(normalized, "paid")
}
