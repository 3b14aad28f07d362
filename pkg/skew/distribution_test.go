package skew

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumsToOne(t *testing.T, w []float64) {
	t.Helper()
	var sum float64
	for _, v := range w {
		assert.GreaterOrEqual(t, v, 0.0)
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestUniformWeightsAreEqual(t *testing.T) {
	w, err := Weights(Descriptor{Kind: Uniform}, 4, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	sumsToOne(t, w)
	for _, v := range w {
		assert.InDelta(t, 0.25, v, 1e-9)
	}
}

func TestZipfWeightsAreDecreasing(t *testing.T) {
	w, err := Weights(Descriptor{Kind: Zipf, Alpha: 1.2}, 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	sumsToOne(t, w)
	for i := 1; i < len(w); i++ {
		assert.Greater(t, w[i-1], w[i])
	}
}

func TestNormalParetoExponentialSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, d := range []Descriptor{
		{Kind: Normal, Loc: 10, Scale: 2},
		{Kind: Pareto, Alpha: 2.5},
		{Kind: Exponential, Scale: 3},
	} {
		w, err := Weights(d, 8, rng)
		require.NoError(t, err)
		sumsToOne(t, w)
	}
}

func TestUnknownKindFailsFast(t *testing.T) {
	_, err := Weights(Descriptor{Kind: "bogus"}, 3, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	var unk ErrUnknownKind
	require.ErrorAs(t, err, &unk)
}

func TestDeterministicForFixedSeed(t *testing.T) {
	d := Descriptor{Kind: Normal, Loc: 5, Scale: 1}
	w1, err := Weights(d, 6, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	w2, err := Weights(d, 6, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, w1, w2)
}
