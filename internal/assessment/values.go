package assessment

// Value objects for the assessment catalog. These are immutable records
// loaded from the store; the engine never writes them back.

// Item is a single assessment question with its IRT parameters.
// Content holds the question payload keyed by item type; for
// multiple_choice it carries item, options, instruction and correct_answer.
type Item struct {
	ID                     string
	Content                map[string]any
	ItemType               string
	SkillAreas             []string
	TargetProficiencyLevel string
	Parameters             map[string]float64
	Active                 bool
}

// Difficulty returns the IRT b parameter (default 0.0).
func (i Item) Difficulty() float64 {
	if v, ok := i.Parameters["difficulty"]; ok {
		return v
	}
	return 0.0
}

// Discrimination returns the IRT a parameter (default 1.0).
func (i Item) Discrimination() float64 {
	if v, ok := i.Parameters["discrimination"]; ok {
		return v
	}
	return 1.0
}

// Guessing returns the IRT c parameter (default 0.25). Unused by the 2PL
// model; kept for a future 3PL extension.
func (i Item) Guessing() float64 {
	if v, ok := i.Parameters["guessing"]; ok {
		return v
	}
	return 0.25
}

// CorrectAnswer returns the expected answer from the item content.
func (i Item) CorrectAnswer() (string, bool) {
	v, ok := i.Content["correct_answer"]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// HasSkillOverlap reports whether the item covers any of the given skill
// areas. An empty filter matches every item.
func (i Item) HasSkillOverlap(skillAreas []string) bool {
	if len(skillAreas) == 0 {
		return true
	}
	for _, want := range skillAreas {
		for _, have := range i.SkillAreas {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Assessment kinds carried by templates.
const (
	TypePlacement = "PLACEMENT"
	TypeSpeaking  = "SPEAKING"
	TypeWriting   = "WRITING"
)

// Template describes a reusable assessment definition.
type Template struct {
	ID                string
	LearningPathwayID string
	Name              string
	AssessmentType    string
	Rubric            map[string]any
	Meta              map[string]any
	Version           int
	Active            bool
}

func (t Template) IsPlacement() bool { return t.AssessmentType == TypePlacement }
func (t Template) IsSpeaking() bool  { return t.AssessmentType == TypeSpeaking }
func (t Template) IsWriting() bool   { return t.AssessmentType == TypeWriting }

// ProficiencyLevels returns the rubric's band list, defaulting to the full
// CEFR ladder.
func (t Template) ProficiencyLevels() []string {
	if t.Rubric != nil {
		if raw, ok := t.Rubric["proficiency_levels"]; ok {
			if levels := toStringSlice(raw); len(levels) > 0 {
				return levels
			}
		}
	}
	return []string{"A1", "A2", "B1", "B2", "C1", "C2"}
}

// Config carries the tunable parameters for running a template.
type Config struct {
	ID             string
	TemplateID     string
	Parameters     map[string]any
	AdaptiveParams map[string]any
	Active         bool
}

// TimeLimitMinutes returns the wall-clock budget for a session (default 120).
func (c Config) TimeLimitMinutes() int {
	return intParam(c.Parameters, "time_limit_minutes", 120)
}

// StartingAbility is the initial theta for a fresh session (default 0.0).
func (c Config) StartingAbility() float64 {
	return floatParam(c.AdaptiveParams, "starting_ability", 0.0)
}

// MinQuestions is the floor before termination may trigger (default 5).
func (c Config) MinQuestions() int {
	return intParam(c.AdaptiveParams, "min_questions", 5)
}

// MaxQuestions is the hard question ceiling (default 25).
func (c Config) MaxQuestions() int {
	return intParam(c.AdaptiveParams, "max_questions", 25)
}

// StoppingStandardError is the precision threshold for early termination
// (default 0.3).
func (c Config) StoppingStandardError() float64 {
	if c.AdaptiveParams != nil {
		if raw, ok := c.AdaptiveParams["stopping_criterion"]; ok {
			if m, ok := raw.(map[string]any); ok {
				return floatParam(m, "standard_error", 0.3)
			}
		}
	}
	return 0.3
}

// SkillAreas lists the skill filter for item selection. Empty means no
// filter.
func (c Config) SkillAreas() []string {
	if c.AdaptiveParams != nil {
		if raw, ok := c.AdaptiveParams["skill_areas"]; ok {
			return toStringSlice(raw)
		}
	}
	return nil
}

// ProficiencyRange maps each CEFR band to a theta interval with "min" and
// "max" bounds.
func (c Config) ProficiencyRange() map[string]any {
	if c.AdaptiveParams != nil {
		if raw, ok := c.AdaptiveParams["proficiency_range"]; ok {
			if m, ok := raw.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}

// ValidQuestionLimits reports whether min_questions <= max_questions.
func (c Config) ValidQuestionLimits() bool {
	return c.MinQuestions() <= c.MaxQuestions()
}

// floatParam reads a numeric value from a JSON-decoded map. Numbers arrive
// as float64 from encoding/json but may be int when built in code.
func floatParam(m map[string]any, key string, def float64) float64 {
	if m == nil {
		return def
	}
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

func intParam(m map[string]any, key string, def int) int {
	if m == nil {
		return def
	}
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
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
