package assessment

import "strings"

// PsychometricModel is the port for IRT calculations. The concrete 2PL
// implementation lives in internal/irt.
type PsychometricModel interface {
	// Information returns the Fisher information the item carries at the
	// given ability.
	Information(ability float64, item Item) (float64, error)
	// EstimateAbility returns (theta, standardError) for a set of scored
	// responses. Scores and items are parallel slices.
	EstimateAbility(scores []float64, items []Item) (float64, float64, error)
}

// CATService implements the adaptive testing flow: item selection,
// response scoring, ability estimation and termination.
type CATService struct {
	model PsychometricModel
}

func NewCATService(model PsychometricModel) *CATService {
	return &CATService{model: model}
}

// SelectNextQuestion picks the most informative unseen active item. An
// empty skillAreas filter admits every skill. Returns nil when no
// candidate survives filtering.
func (s *CATService) SelectNextQuestion(ability float64, skillAreas, usedItemIDs []string, available []Item) (*Item, error) {
	used := make(map[string]struct{}, len(usedItemIDs))
	for _, id := range usedItemIDs {
		used[id] = struct{}{}
	}

	var best *Item
	maxInfo := -1.0
	for i := range available {
		item := &available[i]
		if !item.Active {
			continue
		}
		if !item.HasSkillOverlap(skillAreas) {
			continue
		}
		if _, seen := used[item.ID]; seen {
			continue
		}

		info, err := s.model.Information(ability, *item)
		if err != nil {
			return nil, err
		}
		// Strict comparison keeps the first-encountered item on ties.
		if info > maxInfo {
			maxInfo = info
			best = item
		}
	}
	return best, nil
}

// EstimateAbility computes (theta, standardError) over submitted responses
// and their items.
func (s *CATService) EstimateAbility(responses []Response, items []Item) (float64, float64, error) {
	if len(responses) != len(items) {
		return 0, 0, ErrInvalidResponse("response count %d does not match item count %d", len(responses), len(items))
	}
	scores := make([]float64, len(responses))
	for i := range responses {
		scores[i] = responses[i].Score()
	}
	return s.model.EstimateAbility(scores, items)
}

// ProcessResponse computes the updated (theta, standardError) with the
// current response appended to the history.
func (s *CATService) ProcessResponse(responses []Response, items []Item, currentItem Item, currentScore float64) (float64, float64, error) {
	if len(responses) != len(items) {
		return 0, 0, ErrInvalidResponse("response count %d does not match item count %d", len(responses), len(items))
	}
	scores := make([]float64, 0, len(responses)+1)
	allItems := make([]Item, 0, len(items)+1)
	for i := range responses {
		scores = append(scores, responses[i].Score())
		allItems = append(allItems, items[i])
	}
	scores = append(scores, currentScore)
	allItems = append(allItems, currentItem)
	return s.model.EstimateAbility(scores, allItems)
}

// CheckTermination evaluates the stopping policy after a submit:
// never before min_questions, always at max_questions, otherwise when the
// standard error reaches the stopping threshold.
func (s *CATService) CheckTermination(session *Session, cfg Config) bool {
	if !session.ReachedMinQuestions(cfg.MinQuestions()) {
		return false
	}
	if session.ReachedMaxQuestions(cfg.MaxQuestions()) {
		return true
	}
	if session.SufficientPrecision(cfg.StoppingStandardError()) {
		return true
	}
	return false
}

// ScoreResponse grades a submitted answer against the item's correct
// answer using trimmed, case-insensitive comparison.
func (s *CATService) ScoreResponse(item Item, responseData map[string]any) (score float64, correct bool, err error) {
	correctAnswer, ok := item.CorrectAnswer()
	if !ok {
		return 0, false, ErrInvalidResponse("item %s has no correct answer for scoring", item.ID)
	}
	raw, ok := responseData["selected_option"]
	if !ok || raw == nil {
		return 0, false, ErrInvalidResponse("missing selected_option for scoring")
	}
	selected, ok := raw.(string)
	if !ok {
		return 0, false, ErrInvalidResponse("selected_option must be a string")
	}

	correct = strings.EqualFold(strings.TrimSpace(correctAnswer), strings.TrimSpace(selected))
	if correct {
		score = 1.0
	}
	return score, correct, nil
}

// PlaceProficiency maps a final theta onto the configured band intervals.
// A theta below every band clamps to the lowest, above every band to the
// highest; returns "" when no range is configured.
func (s *CATService) PlaceProficiency(theta float64, cfg Config) string {
	ranges := cfg.ProficiencyRange()
	if len(ranges) == 0 {
		return ""
	}

	lowest, highest := "", ""
	lowestMin, highestMax := 0.0, 0.0
	for _, band := range []string{"A1", "A2", "B1", "B2", "C1", "C2"} {
		raw, ok := ranges[band]
		if !ok {
			continue
		}
		bounds, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		min := floatParam(bounds, "min", 0)
		max := floatParam(bounds, "max", 0)
		if theta >= min && theta < max {
			return band
		}
		if lowest == "" || min < lowestMin {
			lowest, lowestMin = band, min
		}
		if highest == "" || max > highestMax {
			highest, highestMax = band, max
		}
	}
	if lowest != "" && theta < lowestMin {
		return lowest
	}
	return highest
}
