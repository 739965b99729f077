package domain

import "fmt"

// MaskKey renders a credential as first6…last4 plus its length. It never
// exposes enough of the key to be replayed.
func MaskKey(raw string) string {
	if raw == "" {
		return "(empty)"
	}
	if len(raw) <= 10 {
		return fmt.Sprintf("*** (len=%d)", len(raw))
	}
	return fmt.Sprintf("%s…%s (len=%d)", raw[:6], raw[len(raw)-4:], len(raw))
}
