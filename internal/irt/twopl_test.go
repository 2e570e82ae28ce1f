package irt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbability(t *testing.T) {
	t.Run("midpoint is one half", func(t *testing.T) {
		assert.InDelta(t, 0.5, Probability(0.0, 1.0, 0.0), 1e-12)
		assert.InDelta(t, 0.5, Probability(1.3, 1.7, 1.3), 1e-12)
	})

	t.Run("monotone in theta", func(t *testing.T) {
		prev := 0.0
		for theta := -4.0; theta <= 4.0; theta += 0.5 {
			p := Probability(theta, 1.2, 0.0)
			assert.Greater(t, p, prev, "theta=%v", theta)
			prev = p
		}
	})

	t.Run("extreme logits stay finite", func(t *testing.T) {
		high := Probability(1000, 2.0, 0.0)
		low := Probability(-1000, 2.0, 0.0)
		assert.False(t, math.IsNaN(high))
		assert.False(t, math.IsNaN(low))
		assert.Greater(t, high, 0.999)
		assert.Less(t, low, 0.001)
		assert.Greater(t, low, 0.0)
		assert.Less(t, high, 1.0)
	})
}

func TestInformation(t *testing.T) {
	t.Run("maximal at difficulty", func(t *testing.T) {
		p := ItemParams{Discrimination: 1.5, Difficulty: 0.7}
		atB, err := Information(0.7, p)
		require.NoError(t, err)
		for _, theta := range []float64{-2, 0, 0.4, 1.0, 3} {
			info, err := Information(theta, p)
			require.NoError(t, err)
			assert.LessOrEqual(t, info, atB)
		}
		// a^2 * 0.5 * 0.5 at the peak
		assert.InDelta(t, 1.5*1.5*0.25, atB, 1e-12)
	})

	t.Run("never negative", func(t *testing.T) {
		info, err := Information(9.0, ItemParams{Discrimination: 2.5, Difficulty: -3})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, info, 0.0)
	})

	t.Run("rejects non-finite parameters", func(t *testing.T) {
		_, err := Information(0, ItemParams{Discrimination: math.NaN(), Difficulty: 0})
		assert.Error(t, err)
		_, err = Information(0, ItemParams{Discrimination: 1, Difficulty: math.Inf(1)})
		assert.Error(t, err)
	})
}

func TestEstimate(t *testing.T) {
	bank := []ItemParams{
		{Discrimination: 1.0, Difficulty: -1.5},
		{Discrimination: 1.2, Difficulty: -0.5},
		{Discrimination: 1.4, Difficulty: 0.0},
		{Discrimination: 1.3, Difficulty: 0.5},
		{Discrimination: 1.1, Difficulty: 1.5},
	}

	t.Run("no responses falls back to prior", func(t *testing.T) {
		theta, se, err := Estimate(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, theta)
		assert.Equal(t, 2.0, se)
	})

	t.Run("deterministic", func(t *testing.T) {
		scores := []float64{1, 1, 0, 1, 0}
		t1, se1, err := Estimate(scores, bank)
		require.NoError(t, err)
		t2, se2, err := Estimate(scores, bank)
		require.NoError(t, err)
		assert.Equal(t, t1, t2)
		assert.Equal(t, se1, se2)
	})

	t.Run("all correct pulls theta up", func(t *testing.T) {
		theta, se, err := Estimate([]float64{1, 1, 1, 1, 1}, bank)
		require.NoError(t, err)
		assert.Greater(t, theta, 0.5)
		assert.Less(t, se, 2.0)
	})

	t.Run("all incorrect pulls theta down", func(t *testing.T) {
		theta, _, err := Estimate([]float64{0, 0, 0, 0, 0}, bank)
		require.NoError(t, err)
		assert.Less(t, theta, -0.5)
	})

	t.Run("standard error shrinks with more responses", func(t *testing.T) {
		_, seFew, err := Estimate([]float64{1, 0}, bank[:2])
		require.NoError(t, err)
		_, seMany, err := Estimate([]float64{1, 0, 1, 0, 1}, bank)
		require.NoError(t, err)
		assert.Less(t, seMany, seFew)
	})

	t.Run("standard error stays in bounds", func(t *testing.T) {
		// A large bank of highly discriminating items cannot report
		// precision better than the floor.
		var scores []float64
		var params []ItemParams
		for i := 0; i < 200; i++ {
			scores = append(scores, float64(i%2))
			params = append(params, ItemParams{Discrimination: 2.5, Difficulty: 0})
		}
		_, se, err := Estimate(scores, params)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, se, 0.01)
		assert.LessOrEqual(t, se, 2.0)
	})

	t.Run("theta stays clipped", func(t *testing.T) {
		var scores []float64
		var params []ItemParams
		for i := 0; i < 50; i++ {
			scores = append(scores, 1)
			params = append(params, ItemParams{Discrimination: 2.0, Difficulty: 5})
		}
		theta, _, err := Estimate(scores, params)
		require.NoError(t, err)
		assert.LessOrEqual(t, theta, 10.0)
		assert.GreaterOrEqual(t, theta, -10.0)
	})

	t.Run("length mismatch rejected", func(t *testing.T) {
		_, _, err := Estimate([]float64{1}, bank[:2])
		assert.Error(t, err)
	})

	t.Run("non-finite score rejected", func(t *testing.T) {
		_, _, err := Estimate([]float64{math.NaN()}, bank[:1])
		assert.Error(t, err)
	})
}
