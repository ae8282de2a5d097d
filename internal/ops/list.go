package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/elclones/internal/db"
	"github.com/hpungsan/elclones/internal/record"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Limit  int // default: 20, max: 100
	Offset int
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []record.Summary `json:"items" yaml:"items"`
	Pagination Pagination       `json:"pagination" yaml:"pagination"`
	Sort       string           `json:"sort" yaml:"sort"`
}

// List returns record summaries in capture order.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	limit := ClampLimit(input.Limit)
	offset := max(input.Offset, 0)

	items, total, err := db.ListSummaries(ctx, database, limit, offset)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "captured_asc",
	}, nil
}
