package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flightpath/internal/assessment"
)

// SubmitAnswer grades the pending question of a session, updates the
// ability estimate, and either presents the next question or completes the
// assessment.
type SubmitAnswer struct {
	uow    UnitOfWork
	cat    *assessment.CATService
	clock  Clock
	logger *zap.Logger
}

func NewSubmitAnswer(uow UnitOfWork, cat *assessment.CATService, clock Clock, logger *zap.Logger) *SubmitAnswer {
	return &SubmitAnswer{uow: uow, cat: cat, clock: clock, logger: logger}
}

func (uc *SubmitAnswer) Execute(ctx context.Context, cmd SubmitAnswerCommand) (*SubmitAnswerResult, error) {
	var result *SubmitAnswerResult
	err := uc.uow.Do(ctx, func(ctx context.Context, repos Repositories) error {
		now := uc.clock.Now()

		assignment, err := repos.Assignments.GetBySessionID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if assignment == nil || assignment.Session == nil {
			return assessment.ErrSessionNotFound("assessment session not found: %s", cmd.SessionID)
		}

		if !assignment.Session.CanAcceptAnswer(now) {
			return assessment.ErrInvalidSessionState("session %s cannot accept answers", cmd.SessionID)
		}

		pending := assignment.Session.PendingResponse()
		if pending == nil {
			return assessment.ErrSessionNotFound("no pending response for session %s", cmd.SessionID)
		}

		item, err := repos.Items.GetItem(ctx, pending.ItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return assessment.ErrItemNotFound("assessment item not found: %s", pending.ItemID)
		}

		cfg, err := repos.Configs.GetConfigByTemplate(ctx, assignment.TemplateID)
		if err != nil {
			return err
		}
		if cfg == nil {
			return assessment.ErrConfigurationNotFound("no assessment configuration found for template: %s", assignment.TemplateID)
		}

		score, isCorrect, err := uc.cat.ScoreResponse(*item, cmd.ResponseData)
		if err != nil {
			return err
		}

		// History first: the estimator needs every previously submitted
		// response plus the one being graded now.
		previousResponses := assignment.Session.SubmittedResponses()
		previousItems := make([]assessment.Item, 0, len(previousResponses))
		kept := previousResponses[:0]
		for _, r := range previousResponses {
			prev, err := repos.Items.GetItem(ctx, r.ItemID)
			if err != nil {
				return err
			}
			if prev != nil {
				kept = append(kept, r)
				previousItems = append(previousItems, *prev)
			}
		}
		previousResponses = kept

		if _, err := assignment.SubmitResponse(cmd.ResponseData, isCorrect, score, cmd.TimeTaken, now); err != nil {
			return err
		}

		newAbility, standardError, err := uc.cat.ProcessResponse(previousResponses, previousItems, *item, score)
		if err != nil {
			return err
		}
		se := standardError
		if err := assignment.UpdateAbilityEstimate(newAbility, &se); err != nil {
			return err
		}

		uc.logger.Debug("answer scored",
			zap.String("session_id", cmd.SessionID),
			zap.String("item_id", item.ID),
			zap.Bool("correct", isCorrect),
			zap.Float64("ability", newAbility),
			zap.Float64("standard_error", standardError))

		if uc.cat.CheckTermination(assignment.Session, *cfg) {
			result, err = uc.complete(ctx, repos, assignment, *cfg, now, isCorrect)
			return err
		}

		next, err := uc.selectNext(ctx, repos, assignment, *cfg, newAbility)
		if err != nil {
			return err
		}
		if next == nil {
			// Item pool exhausted: terminate even though the precision
			// criterion was not met.
			result, err = uc.complete(ctx, repos, assignment, *cfg, uc.clock.Now(), isCorrect)
			return err
		}

		if _, err := assignment.PresentQuestion(uuid.NewString(), next.ID, uc.clock.Now()); err != nil {
			return err
		}
		if err := repos.Assignments.Save(ctx, assignment); err != nil {
			return err
		}

		nextPublic := mapItemToPublic(*next)
		result = &SubmitAnswerResult{
			NextQuestion: &nextPublic,
			Progress:     buildProgress(assignment, *cfg),
			IsComplete:   false,
			IsCorrect:    isCorrect,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// selectNext re-queries eligible items excluding everything already
// presented and asks the selector for the most informative one.
func (uc *SubmitAnswer) selectNext(ctx context.Context, repos Repositories, assignment *assessment.Assignment, cfg assessment.Config, ability float64) (*assessment.Item, error) {
	answeredIDs := assignment.Session.AnsweredItemIDs()
	skillAreas := cfg.SkillAreas()

	available, err := repos.Items.GetItemsBySkillAreas(ctx, assignment.TemplateID, skillAreas, answeredIDs)
	if err != nil {
		return nil, err
	}
	return uc.cat.SelectNextQuestion(ability, skillAreas, answeredIDs, available)
}

// complete terminates the session, persists the aggregate and builds the
// final progress including the placed proficiency band.
func (uc *SubmitAnswer) complete(ctx context.Context, repos Repositories, assignment *assessment.Assignment, cfg assessment.Config, now time.Time, isCorrect bool) (*SubmitAnswerResult, error) {
	if err := assignment.CompleteAssessment(now); err != nil {
		return nil, err
	}
	if err := repos.Assignments.Save(ctx, assignment); err != nil {
		return nil, err
	}

	progress := buildProgress(assignment, cfg)
	progress.ProficiencyLevel = uc.cat.PlaceProficiency(assignment.CurrentAbility(), cfg)

	uc.logger.Info("assessment completed",
		zap.String("assigned_id", assignment.ID),
		zap.String("session_id", assignment.Session.ID),
		zap.Int("questions_answered", assignment.QuestionsAnswered()),
		zap.Float64("final_ability", assignment.CurrentAbility()),
		zap.String("proficiency_level", progress.ProficiencyLevel))

	return &SubmitAnswerResult{
		NextQuestion: nil,
		Progress:     progress,
		IsComplete:   true,
		IsCorrect:    isCorrect,
	}, nil
}
