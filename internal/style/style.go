// Package style captures an element's computed style as an ordered set of
// property/value pairs and restores it onto another element.
//
// A snapshot travels as a flat JSON object, property name to string value,
// in the order the host enumerated the properties.
package style

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
)

// Property is one computed style declaration.
type Property struct {
	Name  string
	Value string
}

// Snapshot is an ordered style mapping. Names are unique.
type Snapshot []Property

// Source enumerates the computed style of an element.
type Source interface {
	ComputedStyle(ctx context.Context) ([]Property, error)
}

// Target accepts inline style assignments.
type Target interface {
	SetStyleProperty(ctx context.Context, name, value string) error
}

// nonWritable names show up when enumerating a style declaration object but
// are not properties: a length counter and the back-reference to the rule.
var nonWritable = map[string]bool{
	"length":     true,
	"parentRule": true,
}

// NonWritable reports whether name is skipped by Apply.
func NonWritable(name string) bool {
	return nonWritable[name]
}

// FromProperties builds a Snapshot. A repeated name keeps its first
// position and takes the last value.
func FromProperties(props []Property) Snapshot {
	s := make(Snapshot, 0, len(props))
	index := make(map[string]int, len(props))
	for _, p := range props {
		if i, ok := index[p.Name]; ok {
			s[i].Value = p.Value
			continue
		}
		index[p.Name] = len(s)
		s = append(s, p)
	}
	return s
}

// Get returns the value of name.
func (s Snapshot) Get(name string) (string, bool) {
	for _, p := range s {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// MarshalJSON writes the snapshot as a JSON object in property order.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order. Number and boolean
// values are kept in their JSON text form; null becomes the empty string.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("style snapshot must be a JSON object")
	}

	var props []Property
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return err
		}
		var value string
		switch v := tok.(type) {
		case string:
			value = v
		case json.Number:
			value = v.String()
		case bool:
			value = fmt.Sprint(v)
		case nil:
		default:
			return fmt.Errorf("property %q: value must be a scalar", name)
		}
		props = append(props, Property{Name: name, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = FromProperties(props)
	return nil
}

// Encode snapshots the computed style of src and serializes it.
func Encode(ctx context.Context, src Source) (string, error) {
	props, err := src.ComputedStyle(ctx)
	if err != nil {
		return "", fmt.Errorf("read computed style: %w", err)
	}
	data, err := json.Marshal(FromProperties(props))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return string(data), nil
}

// Decode parses a serialized snapshot.
func Decode(styles string) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(styles), &s); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid style snapshot: %v", err))
	}
	return s, nil
}

// ApplyResult counts what Apply did with each property.
type ApplyResult struct {
	Applied int
	Skipped int
	Failed  int
}

// Apply assigns every writable property of s onto dst. A failed assignment
// is logged and the rest still run; partial restoration is not an error.
func Apply(ctx context.Context, dst Target, s Snapshot, log *zap.Logger) ApplyResult {
	log = logging.OrNop(log)

	var res ApplyResult
	for _, p := range s {
		if NonWritable(p.Name) {
			res.Skipped++
			continue
		}
		if err := dst.SetStyleProperty(ctx, p.Name, p.Value); err != nil {
			log.Warn("skipping style property",
				zap.String("property", p.Name),
				zap.String("value", p.Value),
				zap.Error(err))
			res.Failed++
			continue
		}
		res.Applied++
	}
	return res
}
