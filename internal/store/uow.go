package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"flightpath/internal/app"
	"flightpath/internal/assessment"
)

// Do runs fn inside one SQLite transaction. The transaction is opened
// immediate (see the DSN in Open), so two concurrent units of work on the
// same database serialize at begin time instead of failing at commit.
// Commit happens only when fn returns nil; any error or panic rolls back.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos app.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return assessment.ErrTransient("begin transaction: %v", err).WithCause(err)
	}

	done := false
	defer func() {
		if !done {
			// Reached on panic or early return; rollback of a finished
			// transaction is a no-op.
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	repos := app.Repositories{
		Assignments: &assignmentRepo{tx: tx, logger: s.logger},
		Items:       &itemRepo{tx: tx},
		Configs:     &configRepo{tx: tx},
		Templates:   &templateRepo{tx: tx},
	}

	if err := fn(ctx, repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return assessment.ErrTransient("commit transaction: %v", err).WithCause(err)
	}
	done = true
	return nil
}

var _ app.UnitOfWork = (*Store)(nil)
