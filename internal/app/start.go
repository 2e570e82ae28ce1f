package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flightpath/internal/assessment"
)

// StartPlacementTest begins a placement session for an assignment, or
// resumes the pending question of an already-active session. Resuming
// makes the operation idempotent for clients that retry after a
// disconnect.
type StartPlacementTest struct {
	uow    UnitOfWork
	cat    *assessment.CATService
	clock  Clock
	logger *zap.Logger
}

func NewStartPlacementTest(uow UnitOfWork, cat *assessment.CATService, clock Clock, logger *zap.Logger) *StartPlacementTest {
	return &StartPlacementTest{uow: uow, cat: cat, clock: clock, logger: logger}
}

func (uc *StartPlacementTest) Execute(ctx context.Context, cmd StartPlacementTestCommand) (*StartPlacementTestResult, error) {
	var result *StartPlacementTestResult
	err := uc.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		assignment, err := repos.Assignments.GetByID(ctx, cmd.AssignedID)
		if err != nil {
			return err
		}
		if assignment == nil {
			return assessment.ErrAssignmentNotFound("assigned assessment not found: %s", cmd.AssignedID)
		}

		template, err := repos.Templates.GetTemplate(ctx, assignment.TemplateID)
		if err != nil {
			return err
		}
		if template == nil {
			return assessment.ErrConfigurationNotFound("template not found: %s", assignment.TemplateID)
		}

		cfg, err := repos.Configs.GetConfigByTemplate(ctx, template.ID)
		if err != nil {
			return err
		}
		if cfg == nil {
			return assessment.ErrConfigurationNotFound("no config found for template: %s", template.ID)
		}

		// Resume path: an active session with a pending question replays
		// that question instead of allocating new state.
		if assignment.HasActiveSession() {
			if pending := assignment.Session.PendingResponse(); pending != nil {
				item, err := repos.Items.GetItem(ctx, pending.ItemID)
				if err != nil {
					return err
				}
				if item == nil {
					return assessment.ErrItemNotFound("assessment item not found: %s", pending.ItemID)
				}
				uc.logger.Info("resuming placement session",
					zap.String("assigned_id", assignment.ID),
					zap.String("session_id", assignment.Session.ID),
					zap.String("item_id", item.ID))
				result = &StartPlacementTestResult{
					SessionID:     assignment.Session.ID,
					FirstQuestion: mapItemToPublic(*item),
					Progress:      buildProgress(assignment, *cfg),
				}
				return nil
			}
		}

		now := uc.clock.Now()
		expiresAt := now.Add(time.Duration(cfg.TimeLimitMinutes()) * time.Minute)
		startingAbility := cfg.StartingAbility()

		session, err := assignment.StartSession(
			uuid.NewString(),
			now,
			expiresAt,
			startingAbility,
			template.Rubric,
			map[string]any{"template_id": template.ID, "name": template.Name},
		)
		if err != nil {
			return err
		}

		skillAreas := cfg.SkillAreas()
		available, err := repos.Items.GetItemsBySkillAreas(ctx, template.ID, skillAreas, nil)
		if err != nil {
			return err
		}

		firstItem, err := uc.cat.SelectNextQuestion(startingAbility, skillAreas, nil, available)
		if err != nil {
			return err
		}
		if firstItem == nil {
			return assessment.ErrNoEligibleItems("no suitable questions available for assessment start")
		}

		if _, err := assignment.PresentQuestion(uuid.NewString(), firstItem.ID, uc.clock.Now()); err != nil {
			return err
		}

		if err := repos.Assignments.Save(ctx, assignment); err != nil {
			return err
		}

		uc.logger.Info("placement session started",
			zap.String("assigned_id", assignment.ID),
			zap.String("session_id", session.ID),
			zap.String("first_item_id", firstItem.ID),
			zap.Time("expires_at", expiresAt))

		result = &StartPlacementTestResult{
			SessionID:     session.ID,
			FirstQuestion: mapItemToPublic(*firstItem),
			Progress:      buildProgress(assignment, *cfg),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
