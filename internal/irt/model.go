package irt

import (
	"flightpath/internal/assessment"
)

// Model adapts the 2PL kernel to the domain's PsychometricModel port.
type Model struct{}

func NewModel() *Model { return &Model{} }

var _ assessment.PsychometricModel = (*Model)(nil)

// Information returns the Fisher information of a catalog item at the
// given ability.
func (m *Model) Information(ability float64, item assessment.Item) (float64, error) {
	info, err := Information(ability, paramsOf(item))
	if err != nil {
		return 0, assessment.ErrInvalidResponse("item %s: %v", item.ID, err)
	}
	return info, nil
}

// EstimateAbility runs MAP estimation over scored responses and their
// items.
func (m *Model) EstimateAbility(scores []float64, items []assessment.Item) (float64, float64, error) {
	params := make([]ItemParams, len(items))
	for i, item := range items {
		params[i] = paramsOf(item)
	}
	theta, se, err := Estimate(scores, params)
	if err != nil {
		return 0, 0, assessment.ErrInvalidResponse("ability estimation: %v", err)
	}
	return theta, se, nil
}

func paramsOf(item assessment.Item) ItemParams {
	return ItemParams{
		Discrimination: item.Discrimination(),
		Difficulty:     item.Difficulty(),
		Guessing:       item.Guessing(),
	}
}
