package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/style"
)

// Getter reads one record by id.
type Getter interface {
	Get(ctx context.Context, id string) (*record.Record, error)
}

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID            string
	IncludeHTML   *bool // default: true
	IncludeStyles *bool // default: true
}

// FetchOutput is a record plus its display label and property count.
type FetchOutput struct {
	record.Record `yaml:",inline"`
	Label         string `json:"label" yaml:"label"`
	StyleCount    int    `json:"style_count" yaml:"style_count"`
}

// Fetch retrieves a record by id.
func Fetch(ctx context.Context, st Getter, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	r, err := st.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &FetchOutput{Record: *r, Label: r.Label()}
	if snap, err := style.Decode(r.Styles); err == nil {
		out.StyleCount = len(snap)
	}
	if input.IncludeHTML != nil && !*input.IncludeHTML {
		out.HTML = ""
	}
	if input.IncludeStyles != nil && !*input.IncludeStyles {
		out.Styles = ""
	}
	return out, nil
}
