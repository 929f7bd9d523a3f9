package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

func TestParseCents(t *testing.T) {
	cases := map[string]int64{
		"95.60": 9560,
		"95.6":  9560,
		"0":     0,
		"100":   10000,
		" 1.05": 105,
	}
	for in, want := range cases {
		got, err := ParseCents(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseCentsRejects(t *testing.T) {
	for _, in := range []string{"", "-1.00", "1.005", "NaN", "Inf", "abc", "1e400"} {
		_, err := ParseCents(in)
		require.Error(t, err, in)
		assert.Equal(t, shared.KindInvalidInput, shared.KindOf(err), in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "95.60", Format(9560))
	assert.Equal(t, "-0.60", Format(-60))
	assert.Equal(t, "0.00", Format(0))
}

func TestAmountJSON(t *testing.T) {
	var payload struct {
		A Amount `json:"a"`
		B Amount `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.34","b":7.5}`), &payload))
	assert.Equal(t, int64(1234), payload.A.Cents())
	assert.Equal(t, int64(750), payload.B.Cents())

	out, err := json.Marshal(payload.A)
	require.NoError(t, err)
	assert.JSONEq(t, `"12.34"`, string(out))

	err = json.Unmarshal([]byte(`{"a":"-3"}`), &payload)
	require.Error(t, err)
}
