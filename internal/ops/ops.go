// Package ops implements the operations shared by the CLI, MCP and web
// surfaces: listing and fetching captured elements, and moving them in and
// out of the store as JSONL.
package ops

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit" yaml:"limit"`
	Offset  int  `json:"offset" yaml:"offset"`
	HasMore bool `json:"has_more" yaml:"has_more"`
	Total   int  `json:"total" yaml:"total"`
}

// ClampLimit applies the list defaults and bounds.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

// Page slices an in-memory list the way List pages the store.
func Page[T any](items []T, limit, offset int) ([]T, Pagination) {
	limit = ClampLimit(limit)
	offset = min(max(offset, 0), len(items))
	end := min(offset+limit, len(items))
	return items[offset:end], Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: end < len(items),
		Total:   len(items),
	}
}
