package message

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/elclones/internal/errors"
)

func TestEncode_WireShape(t *testing.T) {
	data, err := Encode(ToggleExtension{Enabled: false})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"TOGGLE_EXTENSION","isEnabled":false}`, string(data))

	data, err = Encode(ToggleElementHighlight{ElementID: "id-A", IsHighlighted: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"TOGGLE_ELEMENT_HIGHLIGHT","elementId":"id-A","isHighlighted":true}`, string(data))
}

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"type":"TOGGLE_EXTENSION","isEnabled":true}`))
	require.NoError(t, err)
	require.Equal(t, ToggleExtension{Enabled: true}, m)

	m, err = Decode([]byte(`{"type":"TOGGLE_ELEMENT_HIGHLIGHT","elementId":"x"}`))
	require.NoError(t, err)
	require.Equal(t, ToggleElementHighlight{ElementID: "x"}, m)
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":    `{"type":`,
		"missing type": `{"isEnabled":true}`,
		"unknown type": `{"type":"CLONE_ALL"}`,
		"no element":   `{"type":"TOGGLE_ELEMENT_HIGHLIGHT","isHighlighted":true}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(in))
			require.True(t, errors.Is(err, errors.ErrInvalidMessage), "error = %v", err)
		})
	}
}

type bogus struct{}

func (bogus) Type() string { return "BOGUS" }

func TestEncode_Unknown(t *testing.T) {
	_, err := Encode(bogus{})
	require.True(t, errors.Is(err, errors.ErrInvalidMessage))
}
