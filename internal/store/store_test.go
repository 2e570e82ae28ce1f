package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"flightpath/internal/app"
	"flightpath/internal/assessment"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), 2, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := openTestStore(t)
	require.NoError(t, s.Seed(context.Background(), DefaultSeedItems()))
	return s
}

func seededTemplateID(t *testing.T, s *Store) string {
	t.Helper()
	var id string
	err := s.DB().QueryRow(`SELECT id FROM assessment_templates WHERE name = ?`, seedTemplateName).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestSeed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, DefaultSeedItems()))

	count := func(table string) int {
		var n int
		require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		return n
	}

	assert.Equal(t, 4, count("learning_pathways"))
	assert.Equal(t, 1, count("assessment_templates"))
	assert.Equal(t, 1, count("assessment_configs"))
	assert.Equal(t, len(DefaultSeedItems()), count("assessment_items"))
	assert.Equal(t, len(DefaultSeedItems()), count("template_items"))
	assert.Equal(t, 1, count("assigned_assessments"))

	// Running again must not duplicate anything.
	require.NoError(t, s.Seed(ctx, DefaultSeedItems()))
	assert.Equal(t, 1, count("assessment_templates"))
	assert.Equal(t, len(DefaultSeedItems()), count("assessment_items"))
	assert.Equal(t, 1, count("assigned_assessments"))
}

func TestCatalogReads(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	templateID := seededTemplateID(t, s)

	t.Run("template and config", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			tmpl, err := repos.Templates.GetTemplate(ctx, templateID)
			require.NoError(t, err)
			require.NotNil(t, tmpl)
			assert.Equal(t, seedTemplateName, tmpl.Name)
			assert.True(t, tmpl.IsPlacement())
			assert.Equal(t, []string{"A1", "A2", "B1", "B2", "C1", "C2"}, tmpl.ProficiencyLevels())

			cfg, err := repos.Configs.GetConfigByTemplate(ctx, templateID)
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, 30, cfg.TimeLimitMinutes())
			assert.Equal(t, 5, cfg.MinQuestions())
			assert.Equal(t, 25, cfg.MaxQuestions())
			assert.Equal(t, 0.3, cfg.StoppingStandardError())
			assert.ElementsMatch(t, []string{"grammar", "vocabulary", "reading"}, cfg.SkillAreas())
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("missing rows are nil", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			tmpl, err := repos.Templates.GetTemplate(ctx, "ghost")
			require.NoError(t, err)
			assert.Nil(t, tmpl)

			cfg, err := repos.Configs.GetConfigByTemplate(ctx, "ghost")
			require.NoError(t, err)
			assert.Nil(t, cfg)

			item, err := repos.Items.GetItem(ctx, "ghost")
			require.NoError(t, err)
			assert.Nil(t, item)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("item parameters round trip", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			item, err := repos.Items.GetItem(ctx, "item-b2-001")
			require.NoError(t, err)
			require.NotNil(t, item)
			assert.Equal(t, 0.7, item.Difficulty())
			assert.Equal(t, 1.5, item.Discrimination())
			assert.Equal(t, []string{"grammar"}, item.SkillAreas)
			answer, ok := item.CorrectAnswer()
			assert.True(t, ok)
			assert.Equal(t, "had", answer)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("skill filter and exclusion", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			grammar, err := repos.Items.GetItemsBySkillAreas(ctx, templateID, []string{"grammar"}, nil)
			require.NoError(t, err)
			for _, item := range grammar {
				assert.Contains(t, item.SkillAreas, "grammar")
			}
			require.NotEmpty(t, grammar)

			excluded, err := repos.Items.GetItemsBySkillAreas(ctx, templateID, []string{"grammar"}, []string{grammar[0].ID})
			require.NoError(t, err)
			assert.Len(t, excluded, len(grammar)-1)

			all, err := repos.Items.GetItemsBySkillAreas(ctx, templateID, nil, nil)
			require.NoError(t, err)
			assert.Len(t, all, len(DefaultSeedItems()))
			return nil
		})
		require.NoError(t, err)
	})
}

func TestAssignmentRoundTrip(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	templateID := seededTemplateID(t, s)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	assignedID := uuid.NewString()
	err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		return repos.Assignments.Create(ctx, &assessment.Assignment{
			ID:            assignedID,
			TemplateID:    templateID,
			TestTakerID:   "taker-7",
			TestTakerType: "STUDENT",
			AssignedAt:    now.Add(-time.Hour),
			Status:        assessment.AssignmentPending,
		})
	})
	require.NoError(t, err)

	sessionID := uuid.NewString()
	responseID := uuid.NewString()
	err = s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		a, err := repos.Assignments.GetByID(ctx, assignedID)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.True(t, a.AssignedAt.Equal(now.Add(-time.Hour)))

		_, err = a.StartSession(sessionID, now, now.Add(30*time.Minute), 0.0,
			map[string]any{"scoring_method": "IRT"},
			map[string]any{"template_id": templateID, "name": seedTemplateName})
		require.NoError(t, err)
		_, err = a.PresentQuestion(responseID, "item-b1-001", now)
		require.NoError(t, err)
		return repos.Assignments.Save(ctx, a)
	})
	require.NoError(t, err)

	t.Run("aggregate reloads with pending response", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			a, err := repos.Assignments.GetByID(ctx, assignedID)
			require.NoError(t, err)
			require.NotNil(t, a)
			assert.Equal(t, assessment.AssignmentInProgress, a.Status)
			require.NotNil(t, a.Session)
			assert.Equal(t, sessionID, a.Session.ID)
			assert.Equal(t, "IRT", a.Session.RubricSnapshot["scoring_method"])
			assert.True(t, a.Session.ExpiresAt.Equal(now.Add(30*time.Minute)))
			assert.Equal(t, time.UTC, a.Session.StartedAt.Location())

			pending := a.Session.PendingResponse()
			require.NotNil(t, pending)
			assert.Equal(t, "item-b1-001", pending.ItemID)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("lookup by session id", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			a, err := repos.Assignments.GetBySessionID(ctx, sessionID)
			require.NoError(t, err)
			require.NotNil(t, a)
			assert.Equal(t, assignedID, a.ID)

			missing, err := repos.Assignments.GetBySessionID(ctx, "ghost")
			require.NoError(t, err)
			assert.Nil(t, missing)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("submitted response persists scores at fixed scale", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			a, err := repos.Assignments.GetByID(ctx, assignedID)
			require.NoError(t, err)
			taken := 9
			_, err = a.SubmitResponse(map[string]any{"selected_option": "in"}, true, 1.0, &taken, now.Add(time.Minute))
			require.NoError(t, err)
			se := 0.987654
			require.NoError(t, a.UpdateAbilityEstimate(0.123456, &se))
			return repos.Assignments.Save(ctx, a)
		})
		require.NoError(t, err)

		err = s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			a, err := repos.Assignments.GetByID(ctx, assignedID)
			require.NoError(t, err)
			assert.Equal(t, 1, a.Session.QuestionsAnswered)
			assert.InDelta(t, 0.1235, a.Session.CurrentAbility, 1e-9)
			require.NotNil(t, a.Session.StandardError)
			assert.InDelta(t, 0.9877, *a.Session.StandardError, 1e-9)

			resp := a.Session.Responses[0]
			assert.False(t, resp.Pending())
			require.NotNil(t, resp.RawScore)
			assert.Equal(t, 1.0, *resp.RawScore)
			require.NotNil(t, resp.TimeTaken)
			assert.Equal(t, 9, *resp.TimeTaken)
			assert.Equal(t, "in", resp.ResponseData["selected_option"])
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("completed session is no longer the active one", func(t *testing.T) {
		err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			a, err := repos.Assignments.GetByID(ctx, assignedID)
			require.NoError(t, err)
			require.NoError(t, a.CompleteAssessment(now.Add(2*time.Minute)))
			return repos.Assignments.Save(ctx, a)
		})
		require.NoError(t, err)

		err = s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
			a, err := repos.Assignments.GetByID(ctx, assignedID)
			require.NoError(t, err)
			assert.Equal(t, assessment.AssignmentCompleted, a.Status)
			assert.Nil(t, a.Session)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestSaveConflict(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	templateID := seededTemplateID(t, s)
	now := time.Now().UTC()

	assignedID := uuid.NewString()
	sessionID := uuid.NewString()
	err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		a := &assessment.Assignment{
			ID: assignedID, TemplateID: templateID, TestTakerID: "taker-9",
			TestTakerType: "STUDENT", AssignedAt: now, Status: assessment.AssignmentPending,
		}
		if err := repos.Assignments.Create(ctx, a); err != nil {
			return err
		}
		if _, err := a.StartSession(sessionID, now, now.Add(time.Hour), 0, nil, nil); err != nil {
			return err
		}
		return repos.Assignments.Save(ctx, a)
	})
	require.NoError(t, err)

	// Load a stale copy, advance the counter behind its back, then try to
	// save the stale state.
	var stale *assessment.Assignment
	err = s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		stale, err = repos.Assignments.GetByID(ctx, assignedID)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, stale)

	_, err = s.DB().Exec(`UPDATE assessment_sessions SET questions_answered = 5 WHERE id = ?`, sessionID)
	require.NoError(t, err)

	err = s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		return repos.Assignments.Save(ctx, stale)
	})
	assert.True(t, assessment.IsKind(err, assessment.KindTransient))
}

func TestGetPendingByTestTaker(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	templateID := seededTemplateID(t, s)

	err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		a, err := repos.Assignments.GetPendingByTestTaker(ctx, "demo-taker", templateID)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, SeedAssignmentID, a.ID)
		assert.Equal(t, assessment.AssignmentPending, a.Status)

		none, err := repos.Assignments.GetPendingByTestTaker(ctx, "stranger", templateID)
		require.NoError(t, err)
		assert.Nil(t, none)
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackOnError(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	templateID := seededTemplateID(t, s)

	boom := assessment.ErrInternal("boom")
	err := s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		if err := repos.Assignments.Create(ctx, &assessment.Assignment{
			ID: "rollback-1", TemplateID: templateID, TestTakerID: "t", TestTakerType: "STUDENT",
			AssignedAt: time.Now().UTC(), Status: assessment.AssignmentPending,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.Do(ctx, func(ctx context.Context, repos app.Repositories) error {
		a, err := repos.Assignments.GetByID(ctx, "rollback-1")
		require.NoError(t, err)
		assert.Nil(t, a)
		return nil
	})
	require.NoError(t, err)
}
