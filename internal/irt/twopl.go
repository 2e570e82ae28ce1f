// Package irt implements the two-parameter logistic (2PL) Item Response
// Theory model: response probability, Fisher information, and Maximum A
// Posteriori ability estimation under a standard-normal prior.
package irt

import (
	"fmt"
	"math"
)

// Numeric guards. Logits are clipped before exponentiation, theta is kept
// on a sane latent scale, and the standard error is bounded so a single
// response can never report absurd precision.
const (
	logitClip = 30.0
	thetaClip = 10.0
	seMin     = 0.01
	seMax     = 2.0

	maxIterations = 50
	convergence   = 1e-6

	priorMean     = 0.0
	priorVariance = 1.0
)

// ItemParams holds the IRT parameters of one item. Guessing is carried for
// a future 3PL extension; the 2PL math ignores it.
type ItemParams struct {
	Discrimination float64
	Difficulty     float64
	Guessing       float64
}

func (p ItemParams) validate() error {
	if !isFinite(p.Discrimination) || !isFinite(p.Difficulty) {
		return fmt.Errorf("non-finite item parameters: a=%v b=%v", p.Discrimination, p.Difficulty)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Probability returns P(correct | theta) under the 2PL model, computed in
// the numerically stable branch for either sign of the logit.
func Probability(theta, a, b float64) float64 {
	z := clip(a*(theta-b), -logitClip, logitClip)
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

// Information returns the Fisher information a^2 * P * (1-P) of an item at
// the given ability. Never negative.
func Information(theta float64, p ItemParams) (float64, error) {
	if err := p.validate(); err != nil {
		return 0, err
	}
	prob := Probability(theta, p.Discrimination, p.Difficulty)
	info := p.Discrimination * p.Discrimination * prob * (1.0 - prob)
	return math.Max(0.0, info), nil
}

// Estimate computes the MAP ability estimate and its standard error from
// scored responses via Newton-Raphson. Scores are in [0,1] and parallel to
// params. With no responses the prior alone gives (0.0, 2.0).
func Estimate(scores []float64, params []ItemParams) (theta, standardError float64, err error) {
	if len(scores) != len(params) {
		return 0, 0, fmt.Errorf("score count %d does not match parameter count %d", len(scores), len(params))
	}
	if len(scores) == 0 {
		return 0.0, seMax, nil
	}
	for i, p := range params {
		if err := p.validate(); err != nil {
			return 0, 0, err
		}
		if !isFinite(scores[i]) {
			return 0, 0, fmt.Errorf("non-finite score at index %d", i)
		}
	}

	theta = priorMean
	for iter := 0; iter < maxIterations; iter++ {
		firstDeriv, secondDeriv := derivatives(theta, scores, params)

		// L'' >= 0 means the posterior is not locally concave; stepping
		// further would diverge, so keep the current theta.
		if secondDeriv >= 0 {
			break
		}

		next := clip(theta-firstDeriv/secondDeriv, -thetaClip, thetaClip)
		if math.Abs(next-theta) < convergence {
			theta = next
			break
		}
		theta = next
	}

	_, finalSecondDeriv := derivatives(theta, scores, params)
	information := -finalSecondDeriv
	if information > 0 {
		standardError = clip(1.0/math.Sqrt(information), seMin, seMax)
	} else {
		standardError = seMax
	}
	return theta, standardError, nil
}

// derivatives returns the first and second derivatives of the log-posterior
// at theta, prior included.
func derivatives(theta float64, scores []float64, params []ItemParams) (first, second float64) {
	for i, p := range params {
		prob := Probability(theta, p.Discrimination, p.Difficulty)
		first += p.Discrimination * (scores[i] - prob)
		second -= p.Discrimination * p.Discrimination * prob * (1.0 - prob)
	}
	first += -(theta - priorMean) / priorVariance
	second += -1.0 / priorVariance
	return first, second
}
