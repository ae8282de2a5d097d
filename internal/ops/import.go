package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/store"
)

// maxImportLine bounds one JSONL line; captured markup can be large.
const maxImportLine = 16 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported" yaml:"imported"`
	Skipped  int           `json:"skipped" yaml:"skipped"`
	Errors   []ImportError `json:"errors" yaml:"errors"`
}

// ImportError describes a line that could not be imported.
type ImportError struct {
	Line    int    `json:"line" yaml:"line"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

type importLine struct {
	record.Record
	ElclonesExport bool `json:"_elclones_export"`
}

// Import appends the records of an export file. Records are immutable, so
// an id that is already stored is skipped, never overwritten. Bad lines are
// reported and the rest of the file is still imported.
func Import(ctx context.Context, dst store.Records, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}
	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	out := &ImportOutput{Errors: []ImportError{}}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if ctx.Err() != nil {
			return out, errors.NewCancelled("import")
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec importLine
		if err := json.Unmarshal(line, &rec); err != nil {
			out.Errors = append(out.Errors, ImportError{Line: lineNum, Code: "PARSE_ERROR", Message: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}
		if rec.ElclonesExport {
			continue
		}
		if !record.ValidID(rec.ID) {
			out.Errors = append(out.Errors, ImportError{Line: lineNum, ID: rec.ID, Code: "INVALID_RECORD", Message: "id must be a UUID"})
			continue
		}

		err := dst.Put(ctx, rec.Record)
		switch {
		case err == nil:
			out.Imported++
		case errors.Is(err, errors.ErrDuplicateID):
			out.Skipped++
		case errors.Is(err, errors.ErrInvalidRequest):
			out.Errors = append(out.Errors, ImportError{Line: lineNum, ID: rec.ID, Code: "INVALID_RECORD", Message: err.Error()})
		default:
			return out, err
		}
	}
	if err := scanner.Err(); err != nil {
		out.Errors = append(out.Errors, ImportError{Line: lineNum, Code: "READ_ERROR", Message: fmt.Sprintf("failed to read file: %v", err)})
	}
	return out, nil
}
