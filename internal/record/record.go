package record

import (
	"fmt"
	"strings"

	"github.com/hpungsan/elclones/internal/style"
)

// Record is a captured page element. Fields correspond to the persisted
// shape shared by the durable store and the storage mirror.
// A Record is immutable once stored: there is no update or delete.
type Record struct {
	// ID is a UUID generated at capture time
	ID string `json:"id" yaml:"id"`

	// HTML is the serialized outer markup of the captured element
	HTML string `json:"html" yaml:"html"`

	// Styles is the JSON-encoded flat computed-style mapping
	Styles string `json:"styles" yaml:"styles"`

	// Timestamp is the capture time in epoch milliseconds
	Timestamp int64 `json:"timestamp" yaml:"timestamp"`

	// Name is tag#id.class at capture time (see DisplayName)
	Name string `json:"name" yaml:"name"`
}

// Summary is the lightweight view used by list surfaces.
type Summary struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// Summarize returns the list view of r.
func (r Record) Summarize() Summary {
	return Summary{ID: r.ID, Name: r.Name, Timestamp: r.Timestamp}
}

// Label is the name shown by control surfaces; unnamed records fall back to their id.
func (r Record) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("Element %s", r.ID)
}

// Validate checks the fields every stored record must carry: a UUID id,
// non-empty markup and a style snapshot that decodes as a JSON object.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id is required")
	}
	if !ValidID(r.ID) {
		return fmt.Errorf("record id %q is not a UUID", r.ID)
	}
	if r.HTML == "" {
		return fmt.Errorf("record %s: html is required", r.ID)
	}
	if r.Styles == "" {
		return fmt.Errorf("record %s: styles is required", r.ID)
	}
	if _, err := style.Decode(r.Styles); err != nil {
		return fmt.Errorf("record %s: %w", r.ID, err)
	}
	return nil
}

// DisplayName builds the tag#id.class1.class2 name of an element.
// The tag is lower-cased; an empty id or class list is omitted.
func DisplayName(tag, id string, classes []string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(tag))
	if id != "" {
		b.WriteString("#")
		b.WriteString(id)
	}
	for _, c := range classes {
		if c == "" {
			continue
		}
		b.WriteString(".")
		b.WriteString(c)
	}
	return b.String()
}
