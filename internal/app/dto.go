package app

import "flightpath/internal/assessment"

// PublicItemContent is the client-safe payload of a multiple-choice item.
// The correct answer is stripped during mapping and never serialized.
type PublicItemContent struct {
	Item        string   `json:"item"`
	Options     []string `json:"options"`
	Instruction string   `json:"instruction,omitempty"`
}

// PublicItem is the client view of an assessment item.
type PublicItem struct {
	ID                     string            `json:"id"`
	Content                PublicItemContent `json:"content"`
	ItemType               string            `json:"item_type"`
	SkillArea              []string          `json:"skill_area"`
	TargetProficiencyLevel string            `json:"target_proficiency_level"`
}

// Progress reports how far a session has advanced.
type Progress struct {
	QuestionsCompleted int      `json:"questions_completed"`
	MaxQuestions       *int     `json:"max_questions,omitempty"`
	EstimatedRemaining *int     `json:"estimated_remaining,omitempty"`
	CurrentAbility     *float64 `json:"current_ability,omitempty"`
	StandardError      *float64 `json:"standard_error,omitempty"`
	ProficiencyLevel   string   `json:"proficiency_level,omitempty"`
}

// StartPlacementTestCommand starts or resumes a session for an assignment.
type StartPlacementTestCommand struct {
	AssignedID string
}

// StartPlacementTestResult carries the session and its first (or resumed)
// question.
type StartPlacementTestResult struct {
	SessionID     string
	FirstQuestion PublicItem
	Progress      Progress
}

// SubmitAnswerCommand submits the answer to the pending question.
type SubmitAnswerCommand struct {
	SessionID    string
	ResponseData map[string]any
	TimeTaken    *int
}

// SubmitAnswerResult carries the next question, or completion.
type SubmitAnswerResult struct {
	NextQuestion *PublicItem
	Progress     Progress
	IsComplete   bool
	IsCorrect    bool
}

// mapItemToPublic converts a catalog item to its client view, dropping the
// correct answer.
func mapItemToPublic(item assessment.Item) PublicItem {
	content := PublicItemContent{}
	if raw, ok := item.Content["item"].(string); ok {
		content.Item = raw
	}
	if raw, ok := item.Content["options"]; ok {
		content.Options = toStringSlice(raw)
	}
	if raw, ok := item.Content["instruction"].(string); ok {
		content.Instruction = raw
	}
	return PublicItem{
		ID:                     item.ID,
		Content:                content,
		ItemType:               item.ItemType,
		SkillArea:              item.SkillAreas,
		TargetProficiencyLevel: item.TargetProficiencyLevel,
	}
}

func toStringSlice(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// buildProgress assembles the progress view from the aggregate and config.
func buildProgress(assignment *assessment.Assignment, cfg assessment.Config) Progress {
	maxQuestions := cfg.MaxQuestions()
	ability := assignment.CurrentAbility()
	p := Progress{
		QuestionsCompleted: assignment.QuestionsAnswered(),
		MaxQuestions:       &maxQuestions,
		CurrentAbility:     &ability,
		StandardError:      assignment.StandardError(),
	}
	if remaining := maxQuestions - p.QuestionsCompleted; remaining >= 0 {
		p.EstimatedRemaining = &remaining
	}
	return p
}
