package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flightpath/internal/assessment"
)

// SeedItem is one catalog entry to load during seeding.
type SeedItem struct {
	ID             string
	Question       string
	Options        []string
	CorrectAnswer  string
	SkillArea      string
	CEFRLevel      string
	Difficulty     float64
	Discrimination float64
	Guessing       float64
}

// DefaultSeedItems spans the CEFR ladder with a spread of difficulties so
// a freshly seeded database can run a full adaptive session.
func DefaultSeedItems() []SeedItem {
	return []SeedItem{
		{ID: "item-a1-001", Question: "She ___ a teacher.", Options: []string{"is", "are", "am", "be"}, CorrectAnswer: "is", SkillArea: "grammar", CEFRLevel: "A1", Difficulty: -2.2, Discrimination: 1.1, Guessing: 0.25},
		{ID: "item-a1-002", Question: "I have two ___.", Options: []string{"cat", "cats", "cates", "caties"}, CorrectAnswer: "cats", SkillArea: "vocabulary", CEFRLevel: "A1", Difficulty: -1.9, Discrimination: 1.0, Guessing: 0.25},
		{ID: "item-a2-001", Question: "They ___ to the cinema last night.", Options: []string{"go", "goes", "went", "gone"}, CorrectAnswer: "went", SkillArea: "grammar", CEFRLevel: "A2", Difficulty: -1.2, Discrimination: 1.2, Guessing: 0.25},
		{ID: "item-a2-002", Question: "Choose the opposite of 'cheap'.", Options: []string{"expensive", "small", "bright", "early"}, CorrectAnswer: "expensive", SkillArea: "vocabulary", CEFRLevel: "A2", Difficulty: -0.8, Discrimination: 1.1, Guessing: 0.25},
		{ID: "item-b1-001", Question: "If I ___ more time, I would travel.", Options: []string{"have", "had", "has", "having"}, CorrectAnswer: "had", SkillArea: "grammar", CEFRLevel: "B1", Difficulty: -0.2, Discrimination: 1.4, Guessing: 0.25},
		{ID: "item-b1-002", Question: "The report must be handed ___ by Friday.", Options: []string{"in", "out", "over", "off"}, CorrectAnswer: "in", SkillArea: "reading", CEFRLevel: "B1", Difficulty: 0.1, Discrimination: 1.3, Guessing: 0.25},
		{ID: "item-b2-001", Question: "Hardly ___ the meeting begun when the fire alarm rang.", Options: []string{"had", "has", "did", "was"}, CorrectAnswer: "had", SkillArea: "grammar", CEFRLevel: "B2", Difficulty: 0.7, Discrimination: 1.5, Guessing: 0.25},
		{ID: "item-b2-002", Question: "Choose the best synonym for 'meticulous'.", Options: []string{"careless", "thorough", "rapid", "vague"}, CorrectAnswer: "thorough", SkillArea: "vocabulary", CEFRLevel: "B2", Difficulty: 0.9, Discrimination: 1.4, Guessing: 0.25},
		{ID: "item-c1-001", Question: "___ the evidence, the committee deferred its verdict.", Options: []string{"Notwithstanding", "Moreover", "Whereas", "Albeit"}, CorrectAnswer: "Notwithstanding", SkillArea: "reading", CEFRLevel: "C1", Difficulty: 1.3, Discrimination: 1.6, Guessing: 0.25},
		{ID: "item-c2-001", Question: "The critic's review was so ___ that the playwright abandoned the production.", Options: []string{"scathing", "lukewarm", "effusive", "tepid"}, CorrectAnswer: "scathing", SkillArea: "vocabulary", CEFRLevel: "C2", Difficulty: 1.8, Discrimination: 1.7, Guessing: 0.25},
	}
}

// Seed loads the default catalog: the General pathway, a placement
// template with its config, the given items linked to the template, and
// one PENDING assignment for a demo test taker. Idempotent: rows that
// already exist are left alone.
func (s *Store) Seed(ctx context.Context, items []SeedItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return assessment.ErrTransient("begin seed transaction: %v", err).WithCause(err)
	}
	defer tx.Rollback()

	pathwayID, err := seedPathway(ctx, tx, "General", "General English Assessment")
	if err != nil {
		return err
	}
	for _, name := range []string{"Academic", "Career", "Life & Social"} {
		if _, err := seedPathway(ctx, tx, name, name+" English Assessment"); err != nil {
			return err
		}
	}

	templateID, err := seedTemplate(ctx, tx, pathwayID)
	if err != nil {
		return err
	}
	if err := seedItems(ctx, tx, templateID, items); err != nil {
		return err
	}
	if err := seedConfig(ctx, tx, templateID); err != nil {
		return err
	}
	if err := seedAssignment(ctx, tx, templateID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return assessment.ErrTransient("commit seed transaction: %v", err).WithCause(err)
	}
	s.logger.Info("database seeded", zap.String("template_id", templateID), zap.Int("items", len(items)))
	return nil
}

func seedPathway(ctx context.Context, tx *sql.Tx, name, description string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM learning_pathways WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", assessment.ErrTransient("seed pathway %s: %v", name, err).WithCause(err)
	}

	id = uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO learning_pathways (id, name, description, is_active) VALUES (?, ?, ?, 1)`,
		id, name, description)
	if err != nil {
		return "", assessment.ErrTransient("seed pathway %s: %v", name, err).WithCause(err)
	}
	return id, nil
}

const seedTemplateName = "General Placement Test"

func seedTemplate(ctx context.Context, tx *sql.Tx, pathwayID string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM assessment_templates WHERE name = ?`, seedTemplateName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", assessment.ErrTransient("seed template: %v", err).WithCause(err)
	}

	rubric, err := marshalJSON(map[string]any{
		"proficiency_levels": []string{"A1", "A2", "B1", "B2", "C1", "C2"},
		"scoring_method":     "IRT",
		"description":        "Adaptive placement test using Item Response Theory",
	})
	if err != nil {
		return "", err
	}
	meta, err := marshalJSON(map[string]any{
		"duration_minutes": 30,
		"instructions":     "Answer each question to the best of your ability.",
	})
	if err != nil {
		return "", err
	}

	id = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO assessment_templates (id, learning_pathway_id, name, assessment_type, rubric, meta, version, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1, 1)`,
		id, pathwayID, seedTemplateName, assessment.TypePlacement, rubric, meta)
	if err != nil {
		return "", assessment.ErrTransient("seed template: %v", err).WithCause(err)
	}
	return id, nil
}

func seedItems(ctx context.Context, tx *sql.Tx, templateID string, items []SeedItem) error {
	for _, it := range items {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM assessment_items WHERE id = ?)`, it.ID).Scan(&exists); err != nil {
			return assessment.ErrTransient("seed item %s: %v", it.ID, err).WithCause(err)
		}
		if !exists {
			content, err := marshalJSON(map[string]any{
				"item":           it.Question,
				"options":        it.Options,
				"instruction":    "",
				"correct_answer": it.CorrectAnswer,
			})
			if err != nil {
				return err
			}
			skillArea, err := marshalJSON([]string{it.SkillArea})
			if err != nil {
				return err
			}
			params, err := marshalJSON(map[string]float64{
				"difficulty":     it.Difficulty,
				"discrimination": it.Discrimination,
				"guessing":       it.Guessing,
			})
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO assessment_items (id, content, item_type, skill_area, target_proficiency_level, parameters, is_active)
				VALUES (?, ?, 'multiple_choice', ?, ?, ?, 1)`,
				it.ID, content, skillArea, it.CEFRLevel, params)
			if err != nil {
				return assessment.ErrTransient("seed item %s: %v", it.ID, err).WithCause(err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO template_items (id, template_id, item_id, item_order)
			VALUES (?, ?, ?, NULL)`,
			uuid.NewString(), templateID, it.ID)
		if err != nil {
			return assessment.ErrTransient("link item %s: %v", it.ID, err).WithCause(err)
		}
	}
	return nil
}

func seedConfig(ctx context.Context, tx *sql.Tx, templateID string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM assessment_configs WHERE template_id = ?)`, templateID).Scan(&exists); err != nil {
		return assessment.ErrTransient("seed config: %v", err).WithCause(err)
	}
	if exists {
		return nil
	}

	parameters, err := marshalJSON(map[string]any{"time_limit_minutes": 30})
	if err != nil {
		return err
	}
	adaptive, err := marshalJSON(map[string]any{
		"starting_ability":   0.0,
		"min_questions":      5,
		"max_questions":      25,
		"stopping_criterion": map[string]any{"standard_error": 0.3},
		"skill_areas":        []string{"grammar", "vocabulary", "reading"},
		"proficiency_range": map[string]any{
			"A1": map[string]any{"min": -2.0, "max": -1.0},
			"A2": map[string]any{"min": -1.0, "max": -0.5},
			"B1": map[string]any{"min": -0.5, "max": 0.0},
			"B2": map[string]any{"min": 0.0, "max": 1.0},
			"C1": map[string]any{"min": 1.0, "max": 1.5},
			"C2": map[string]any{"min": 1.5, "max": 2.0},
		},
	})
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assessment_configs (id, template_id, parameters, adaptive_params, is_active)
		VALUES (?, ?, ?, ?, 1)`,
		uuid.NewString(), templateID, parameters, adaptive)
	if err != nil {
		return assessment.ErrTransient("seed config: %v", err).WithCause(err)
	}
	return nil
}

// SeedAssignmentID is the well-known demo assignment created by Seed.
const SeedAssignmentID = "assign-001"

func seedAssignment(ctx context.Context, tx *sql.Tx, templateID string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM assigned_assessments WHERE id = ?)`, SeedAssignmentID).Scan(&exists); err != nil {
		return assessment.ErrTransient("seed assignment: %v", err).WithCause(err)
	}
	if exists {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO assigned_assessments (id, template_id, test_taker_id, test_taker_type, assigned_by, assigned_at, due_at, status, notes)
		VALUES (?, ?, 'demo-taker', 'STUDENT', NULL, ?, NULL, ?, NULL)`,
		SeedAssignmentID, templateID, formatTime(time.Now().UTC()), string(assessment.AssignmentPending))
	if err != nil {
		return assessment.ErrTransient("seed assignment: %v", err).WithCause(err)
	}
	return nil
}
