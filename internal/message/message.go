// Package message defines the control messages sent from control surfaces
// to page agents and their JSON wire form.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/hpungsan/elclones/internal/errors"
)

// Wire type tags.
const (
	TypeToggleExtension        = "TOGGLE_EXTENSION"
	TypeToggleElementHighlight = "TOGGLE_ELEMENT_HIGHLIGHT"
)

// Message is a control message. Delivery is fire-and-forget.
type Message interface {
	Type() string
}

// ToggleExtension sets the agent's capture flag.
type ToggleExtension struct {
	Enabled bool
}

func (ToggleExtension) Type() string { return TypeToggleExtension }

// ToggleElementHighlight adds or removes a record id from the highlighted set.
type ToggleElementHighlight struct {
	ElementID     string
	IsHighlighted bool
}

func (ToggleElementHighlight) Type() string { return TypeToggleElementHighlight }

type wire struct {
	Type          string `json:"type"`
	IsEnabled     *bool  `json:"isEnabled,omitempty"`
	ElementID     string `json:"elementId,omitempty"`
	IsHighlighted *bool  `json:"isHighlighted,omitempty"`
}

// Encode returns the wire form of m.
func Encode(m Message) ([]byte, error) {
	switch m := m.(type) {
	case ToggleExtension:
		return json.Marshal(wire{Type: TypeToggleExtension, IsEnabled: &m.Enabled})
	case ToggleElementHighlight:
		return json.Marshal(wire{Type: TypeToggleElementHighlight, ElementID: m.ElementID, IsHighlighted: &m.IsHighlighted})
	default:
		return nil, errors.NewInvalidMessage(fmt.Sprintf("unknown message %T", m))
	}
}

// Decode parses a wire message. Missing booleans read as false; a highlight
// message must name an element.
func Decode(data []byte) (Message, error) {
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errors.NewInvalidMessage(fmt.Sprintf("malformed message: %v", err))
	}

	switch w.Type {
	case TypeToggleExtension:
		return ToggleExtension{Enabled: w.IsEnabled != nil && *w.IsEnabled}, nil
	case TypeToggleElementHighlight:
		if w.ElementID == "" {
			return nil, errors.NewInvalidMessage("elementId is required")
		}
		return ToggleElementHighlight{
			ElementID:     w.ElementID,
			IsHighlighted: w.IsHighlighted != nil && *w.IsHighlighted,
		}, nil
	case "":
		return nil, errors.NewInvalidMessage("message type is required")
	default:
		return nil, errors.NewInvalidMessage(fmt.Sprintf("unknown message type %q", w.Type))
	}
}
