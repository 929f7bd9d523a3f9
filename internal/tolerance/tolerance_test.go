package tolerance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

func TestGradeSignedVariance(t *testing.T) {
	cases := []struct {
		name      string
		expected  int64
		actual    int64
		tolerance int64
		within    bool
		variance  int64
	}{
		{"exact", 10000, 10000, 0, true, 0},
		{"overage inside", 10000, 10050, 100, true, 50},
		{"shortage inside", 10000, 9900, 100, true, -100},
		{"overage outside", 10000, 10101, 100, false, 101},
		{"shortage outside", 10000, 9899, 100, false, -101},
		{"zero tolerance any variance", 500, 501, 0, false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Grade(tc.expected, tc.actual, tc.tolerance)
			require.NoError(t, err)
			assert.Equal(t, tc.within, res.WithinTolerance)
			assert.Equal(t, tc.variance, res.VarianceCents)
			assert.Equal(t, !tc.within, res.OutOfThreshold())
		})
	}
}

func TestGradeIsSymmetricOnlyThroughSign(t *testing.T) {
	for _, delta := range []int64{1, 37, 100, 250} {
		over, err := Grade(1000, 1000+delta, 100)
		require.NoError(t, err)
		under, err := Grade(1000, 1000-delta, 100)
		require.NoError(t, err)
		assert.Equal(t, over.WithinTolerance, under.WithinTolerance)
		assert.Equal(t, over.VarianceCents, -under.VarianceCents)
	}
}

func TestGradeRejectsNegativeTolerance(t *testing.T) {
	_, err := Grade(100, 100, -1)
	require.ErrorIs(t, err, ErrNegativeTolerance)
	assert.Equal(t, shared.KindInvalidInput, shared.KindOf(err))
}

func TestBandOf(t *testing.T) {
	band, err := BandOf(0, 100)
	require.NoError(t, err)
	assert.Equal(t, BandExact, band)

	band, err = BandOf(-60, 100)
	require.NoError(t, err)
	assert.Equal(t, BandWithin, band)

	band, err = BandOf(100, 100)
	require.NoError(t, err)
	assert.Equal(t, BandWithin, band)

	band, err = BandOf(101, 100)
	require.NoError(t, err)
	assert.Equal(t, BandOutside, band)

	// inside tolerance never grades outside
	for v := int64(-100); v <= 100; v += 7 {
		band, err := BandOf(v, 100)
		require.NoError(t, err)
		assert.NotEqual(t, BandOutside, band)
	}
}
