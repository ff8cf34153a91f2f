package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberDecodesBothShapes(t *testing.T) {
	var out struct {
		A Number `json:"a"`
		B Number `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 11987654321, "b": "11987654321"}`), &out))
	assert.Equal(t, "11987654321", out.A.String())
	assert.Equal(t, out.A, out.B)

	f, err := out.A.Float64()
	require.NoError(t, err)
	assert.Equal(t, 1.1987654321e10, f)
}

func TestNumberRejectsNonNumericShapes(t *testing.T) {
	var n Number
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &n))
}

func TestFloatDecode(t *testing.T) {
	var out struct {
		A Float `json:"a"`
		B Float `json:"b"`
		C Float `json:"c"`
		D Float `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 1.5, "b": "2.25", "c": "", "d": null}`), &out))
	assert.Equal(t, 1.5, out.A.Value())
	assert.Equal(t, 2.25, out.B.Value())
	assert.Zero(t, out.C.Value())
	assert.Zero(t, out.D.Value())
}

func TestMoneyDecode(t *testing.T) {
	var out struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "12000.50", "b": 0.1, "c": ""}`), &out))
	assert.True(t, out.A.Equal(decimal.RequireFromString("12000.50")))
	assert.True(t, out.B.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, out.C.IsZero())
}

func TestTimestampDecode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"millis", `1651700000123`, time.UnixMilli(1651700000123)},
		{"seconds", `1651700000`, time.Unix(1651700000, 0)},
		{"rfc3339", `"2022-05-04T21:33:20Z"`, time.Date(2022, 5, 4, 21, 33, 20, 0, time.UTC)},
		{"space separated", `"2022-05-04 21:33:20"`, time.Date(2022, 5, 4, 21, 33, 20, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tc.in), &ts))
			assert.True(t, ts.Time().Equal(tc.want), "got %v want %v", ts.Time(), tc.want)
		})
	}
}

func TestTimestampAbsent(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"not a time"`), &ts))
}
