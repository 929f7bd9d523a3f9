package shared

// Listing limits shared by queue-style endpoints.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ClampLimit normalises a caller supplied page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
