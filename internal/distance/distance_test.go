package distance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperplane-db/hyperplane/internal/types"
)

func randomVec(r *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = r.Float64()*20 - 10
	}
	return v
}

func TestScalarVectorizedAgree(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	kinds := []Kind{L1, L2, L2Squared, Cosine, InnerProduct}
	for _, k := range kinds {
		t.Run(string(k), func(t *testing.T) {
			for _, dim := range []int{1, 3, 4, 7, 8, 64, 129} {
				a := randomVec(r, dim)
				b := randomVec(r, dim)
				scalarFn := Scalar(k)
				vecFn := Vectorized(k)
				require.NotNil(t, scalarFn)
				require.NotNil(t, vecFn)
				got := vecFn(a, b)
				want := scalarFn(a, b)
				tol := 1e-6 * math.Max(1, math.Abs(want))
				assert.InDeltaf(t, want, got, tol, "dim=%d", dim)
			}
		})
	}
}

func TestHaversineKnownCities(t *testing.T) {
	// Paris -> London, roughly 344km great-circle.
	paris := []float64{48.8566, 2.3522}
	london := []float64{51.5074, -0.1278}
	d := HaversineDist(paris, london)
	assert.InDelta(t, 344000, d, 10000)
}

func TestChiSquaredZeroDenominator(t *testing.T) {
	a := []float64{0, 1, 2}
	b := []float64{0, 1, 2}
	assert.Equal(t, 0.0, ChiSquaredDist(a, b))
}

func TestHammingCountsDifferences(t *testing.T) {
	a := []float64{1, 0, 1, 1}
	b := []float64{1, 1, 1, 0}
	assert.Equal(t, 2.0, HammingDist(a, b))
}

func TestRegistryBreakEven(t *testing.T) {
	reg := NewRegistry()
	scalarFn := Scalar(L2)
	vecFn := Vectorized(L2)

	small := reg.Resolve(L2, types.FloatVector, 8, true)
	assertSameFunc(t, small, scalarFn)

	large := reg.Resolve(L2, types.FloatVector, 128, true)
	assertSameFunc(t, large, vecFn)

	largeButDisabled := reg.Resolve(L2, types.FloatVector, 128, false)
	assertSameFunc(t, largeButDisabled, scalarFn)
}

func assertSameFunc(t *testing.T, got, want Func) {
	t.Helper()
	a := []float64{1, 2, 3, 4}
	b := []float64{4, 3, 2, 1}
	assert.Equal(t, want(a, b), got(a, b))
}
