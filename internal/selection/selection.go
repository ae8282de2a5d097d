// Package selection holds a page agent's in-memory mode: the capture flag
// and the set of highlighted record ids eligible for cloning. The two are
// independent; Mode folds them into one variant for the click decision.
package selection

import (
	"sort"

	"github.com/hpungsan/elclones/internal/message"
)

// Kind is the effective mode.
type Kind int

const (
	Disabled Kind = iota
	Capturing
	Cloning
)

func (k Kind) String() string {
	switch k {
	case Capturing:
		return "capturing"
	case Cloning:
		return "cloning"
	default:
		return "disabled"
	}
}

// Mode is the effective mode. Highlighted is set only when Kind is Cloning.
type Mode struct {
	Kind        Kind
	Highlighted []string
}

// ActionKind is what a click does.
type ActionKind int

const (
	None ActionKind = iota
	Capture
	Clone
)

func (a ActionKind) String() string {
	switch a {
	case Capture:
		return "capture"
	case Clone:
		return "clone"
	default:
		return "none"
	}
}

// Action is the decision for a click. When PreventDefault is false the
// click proceeds untouched.
type Action struct {
	Kind           ActionKind
	Highlighted    []string
	PreventDefault bool
}

// State is not safe for concurrent use; it belongs to one agent loop.
type State struct {
	enabled     bool
	highlighted map[string]struct{}
}

// New returns a disabled state with nothing highlighted.
func New() *State {
	return &State{highlighted: make(map[string]struct{})}
}

// SetEnabled replaces the capture flag.
func (s *State) SetEnabled(enabled bool) {
	s.enabled = enabled
}

// Enabled returns the capture flag.
func (s *State) Enabled() bool {
	return s.enabled
}

// SetHighlighted adds or removes id. It does not look at the capture flag.
func (s *State) SetHighlighted(id string, on bool) {
	if on {
		s.highlighted[id] = struct{}{}
		return
	}
	delete(s.highlighted, id)
}

// IsHighlighted reports whether id is in the highlighted set.
func (s *State) IsHighlighted(id string) bool {
	_, ok := s.highlighted[id]
	return ok
}

// Highlighted returns the highlighted ids, sorted.
func (s *State) Highlighted() []string {
	ids := make([]string, 0, len(s.highlighted))
	for id := range s.highlighted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HoverActive reports whether hover feedback is shown: either feature is on.
func (s *State) HoverActive() bool {
	return s.enabled || len(s.highlighted) > 0
}

// Mode folds the flag and the highlighted set. Capturing wins over cloning.
func (s *State) Mode() Mode {
	switch {
	case s.enabled:
		return Mode{Kind: Capturing}
	case len(s.highlighted) > 0:
		return Mode{Kind: Cloning, Highlighted: s.Highlighted()}
	default:
		return Mode{Kind: Disabled}
	}
}

// Decide returns what a click does in the current mode.
func (s *State) Decide() Action {
	m := s.Mode()
	switch m.Kind {
	case Capturing:
		return Action{Kind: Capture, PreventDefault: true}
	case Cloning:
		return Action{Kind: Clone, Highlighted: m.Highlighted, PreventDefault: true}
	case Disabled:
		return Action{Kind: None}
	}
	panic("selection: unknown mode")
}

// Apply applies a control message and reports whether the message changed
// the state.
func (s *State) Apply(m message.Message) bool {
	switch m := m.(type) {
	case message.ToggleExtension:
		changed := s.enabled != m.Enabled
		s.enabled = m.Enabled
		return changed
	case message.ToggleElementHighlight:
		changed := s.IsHighlighted(m.ElementID) != m.IsHighlighted
		s.SetHighlighted(m.ElementID, m.IsHighlighted)
		return changed
	default:
		return false
	}
}
