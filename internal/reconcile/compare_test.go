package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testEpsilon = decimal.NewFromFloat(0.0001)

func TestNormalizeValue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		numeric bool
	}{
		{"92.5%", "92.5", true},
		{"0.926", "92.6", true},
		{"1", "100", true},
		{"0", "0", true},
		{"92.5", "92.5", true},
		{" 88.0 ", "88", true},
		{"-0.5", "-0.5", true},
		{"", "", false},
		{"-", "", false},
		{"—", "", false},
		{"缺失", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := normalizeValue(tc.in)
			require.Equal(t, tc.numeric, ok)
			if ok {
				require.True(t, got.Equal(decimal.RequireFromString(tc.want)),
					"normalize(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestValuesDiffer(t *testing.T) {
	t.Parallel()

	// Same value on different scales.
	require.False(t, valuesDiffer("92.5%", "0.925", testEpsilon))
	require.False(t, valuesDiffer("92.5", "92.5%", testEpsilon))

	// A real deviation beyond epsilon.
	require.True(t, valuesDiffer("92.5", "0.926", testEpsilon))

	// Within epsilon.
	require.False(t, valuesDiffer("92.50004", "92.50008", testEpsilon))

	// Non-numeric falls back to string equality.
	require.False(t, valuesDiffer("达标", "达标", testEpsilon))
	require.True(t, valuesDiffer("达标", "未达标", testEpsilon))

	// Blank versus blank markers.
	require.False(t, valuesDiffer("", "", testEpsilon))
	require.True(t, valuesDiffer("", "92.5", testEpsilon))
}
