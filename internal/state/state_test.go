package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "decimal", text: "21.5", want: "21.5"},
		{name: "negative decimal", text: " -3 ", want: "-3"},
		{name: "switch on", text: "on", want: "ON"},
		{name: "contact closed", text: "CLOSED", want: "CLOSED"},
		{name: "quantity", text: "21.5 °C", want: "21.5 °C"},
		{name: "quantity alias", text: "1.2 ℃", want: "1.2 °C"},
		{name: "null", text: "NULL", want: "UNDEF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{"warm", "12 parsecs", "1,5"} {
		_, err := Parse(text)
		assert.ErrorIs(t, err, ErrUnparsable, text)
	}
}

func TestBinary(t *testing.T) {
	var b Binary = On
	assert.True(t, b.Active())
	b = Closed
	assert.False(t, b.Active())
}
