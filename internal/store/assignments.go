package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"flightpath/internal/assessment"
)

// assignmentRepo persists the assignment aggregate within one transaction.
type assignmentRepo struct {
	tx     *sql.Tx
	logger *zap.Logger
}

// GetByID reconstitutes the aggregate: the assignment row, its active
// (IN_PROGRESS) session if any, and that session's responses in
// presentation order.
func (r *assignmentRepo) GetByID(ctx context.Context, assignedID string) (*assessment.Assignment, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, template_id, test_taker_id, test_taker_type, assigned_by, assigned_at, due_at, status, notes
		FROM assigned_assessments WHERE id = ?`, assignedID)

	var (
		a          assessment.Assignment
		assignedBy sql.NullString
		assignedAt string
		dueAt      sql.NullString
		notes      sql.NullString
		status     string
	)
	err := row.Scan(&a.ID, &a.TemplateID, &a.TestTakerID, &a.TestTakerType, &assignedBy, &assignedAt, &dueAt, &status, &notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, assessment.ErrTransient("load assignment %s: %v", assignedID, err).WithCause(err)
	}

	a.AssignedBy = nullStringPtr(assignedBy)
	a.Notes = nullStringPtr(notes)
	a.Status = assessment.AssignmentStatus(status)
	if a.AssignedAt, err = parseTime(assignedAt); err != nil {
		return nil, assessment.ErrInternal("assignment %s: bad assigned_at: %v", assignedID, err)
	}
	if a.DueAt, err = parseTimePtr(dueAt); err != nil {
		return nil, assessment.ErrInternal("assignment %s: bad due_at: %v", assignedID, err)
	}

	session, err := r.loadActiveSession(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Session = session
	return &a, nil
}

// GetBySessionID looks up the owning assignment of a session and loads the
// full aggregate.
func (r *assignmentRepo) GetBySessionID(ctx context.Context, sessionID string) (*assessment.Assignment, error) {
	var assignedID string
	err := r.tx.QueryRowContext(ctx,
		`SELECT assigned_id FROM assessment_sessions WHERE id = ?`, sessionID).Scan(&assignedID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, assessment.ErrTransient("load session %s: %v", sessionID, err).WithCause(err)
	}
	return r.GetByID(ctx, assignedID)
}

// GetPendingByTestTaker finds a PENDING assignment for a taker/template
// pair.
func (r *assignmentRepo) GetPendingByTestTaker(ctx context.Context, testTakerID, templateID string) (*assessment.Assignment, error) {
	var assignedID string
	err := r.tx.QueryRowContext(ctx, `
		SELECT id FROM assigned_assessments
		WHERE test_taker_id = ? AND template_id = ? AND status = ?
		LIMIT 1`, testTakerID, templateID, string(assessment.AssignmentPending)).Scan(&assignedID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, assessment.ErrTransient("load pending assignment: %v", err).WithCause(err)
	}
	return r.GetByID(ctx, assignedID)
}

func (r *assignmentRepo) loadActiveSession(ctx context.Context, assignedID string) (*assessment.Session, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, assigned_id, status, current_ability, standard_error, questions_answered,
		       rubric_snapshot, template_snapshot, started_at, completed_at, expires_at
		FROM assessment_sessions
		WHERE assigned_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`, assignedID, string(assessment.SessionInProgress))

	var (
		sess           assessment.Session
		status         string
		ability        sql.NullFloat64
		standardError  sql.NullFloat64
		rubricSnap     sql.NullString
		templateSnap   sql.NullString
		startedAt      string
		completedAt    sql.NullString
		expiresAt      string
	)
	err := row.Scan(&sess.ID, &sess.AssignedID, &status, &ability, &standardError, &sess.QuestionsAnswered,
		&rubricSnap, &templateSnap, &startedAt, &completedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, assessment.ErrTransient("load active session for %s: %v", assignedID, err).WithCause(err)
	}

	sess.Status = assessment.SessionStatus(status)
	if ability.Valid {
		sess.CurrentAbility = ability.Float64
	}
	sess.StandardError = nullFloatPtr(standardError)
	if sess.RubricSnapshot, err = unmarshalMap(rubricSnap); err != nil {
		return nil, assessment.ErrInternal("session %s: %v", sess.ID, err)
	}
	if sess.TemplateSnapshot, err = unmarshalMap(templateSnap); err != nil {
		return nil, assessment.ErrInternal("session %s: %v", sess.ID, err)
	}
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, assessment.ErrInternal("session %s: bad started_at: %v", sess.ID, err)
	}
	if sess.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, assessment.ErrInternal("session %s: bad completed_at: %v", sess.ID, err)
	}
	if sess.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, assessment.ErrInternal("session %s: bad expires_at: %v", sess.ID, err)
	}

	if err := r.loadResponses(ctx, &sess); err != nil {
		return nil, err
	}

	pendingCount := 0
	for i := range sess.Responses {
		if sess.Responses[i].Pending() {
			pendingCount++
		}
	}
	if pendingCount > 1 {
		// Indicates prior corruption; the newest pending wins downstream.
		r.logger.Warn("session has multiple pending responses",
			zap.String("session_id", sess.ID), zap.Int("pending", pendingCount))
	}
	return &sess, nil
}

func (r *assignmentRepo) loadResponses(ctx context.Context, sess *assessment.Session) error {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, session_id, item_id, response_data, is_correct, raw_score,
		       presented_at, submitted_at, time_taken
		FROM assessment_responses
		WHERE session_id = ?
		ORDER BY presented_at ASC, id ASC`, sess.ID)
	if err != nil {
		return assessment.ErrTransient("load responses for %s: %v", sess.ID, err).WithCause(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			resp         assessment.Response
			responseData sql.NullString
			isCorrect    sql.NullBool
			rawScore     sql.NullFloat64
			presentedAt  string
			submittedAt  sql.NullString
			timeTaken    sql.NullInt64
		)
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.ItemID, &responseData, &isCorrect,
			&rawScore, &presentedAt, &submittedAt, &timeTaken); err != nil {
			return assessment.ErrTransient("scan response: %v", err).WithCause(err)
		}
		if resp.ResponseData, err = unmarshalMap(responseData); err != nil {
			return assessment.ErrInternal("response %s: %v", resp.ID, err)
		}
		resp.IsCorrect = nullBoolPtr(isCorrect)
		resp.RawScore = nullFloatPtr(rawScore)
		if resp.PresentedAt, err = parseTime(presentedAt); err != nil {
			return assessment.ErrInternal("response %s: bad presented_at: %v", resp.ID, err)
		}
		if resp.SubmittedAt, err = parseTimePtr(submittedAt); err != nil {
			return assessment.ErrInternal("response %s: bad submitted_at: %v", resp.ID, err)
		}
		resp.TimeTaken = nullIntPtr(timeTaken)
		sess.Responses = append(sess.Responses, resp)
	}
	if err := rows.Err(); err != nil {
		return assessment.ErrTransient("iterate responses: %v", err).WithCause(err)
	}
	return nil
}

// Save upserts the aggregate. The session update carries an optimistic
// guard on questions_answered so a concurrent submit that already advanced
// the counter surfaces as a retryable conflict instead of a lost update.
func (r *assignmentRepo) Save(ctx context.Context, a *assessment.Assignment) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE assigned_assessments SET status = ?, notes = ? WHERE id = ?`,
		string(a.Status), nullable(a.Notes), a.ID)
	if err != nil {
		return assessment.ErrTransient("update assignment %s: %v", a.ID, err).WithCause(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return assessment.ErrAssignmentNotFound("assignment %s vanished during save", a.ID)
	}

	if a.Session != nil {
		if err := r.saveSession(ctx, a.Session); err != nil {
			return err
		}
	}
	return nil
}

func (r *assignmentRepo) saveSession(ctx context.Context, sess *assessment.Session) error {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM assessment_sessions WHERE id = ?)`, sess.ID).Scan(&exists)
	if err != nil {
		return assessment.ErrTransient("check session %s: %v", sess.ID, err).WithCause(err)
	}

	ability := sess.CurrentAbility
	if exists {
		res, err := r.tx.ExecContext(ctx, `
			UPDATE assessment_sessions
			SET current_ability = ?, standard_error = ?, questions_answered = ?, status = ?, completed_at = ?
			WHERE id = ? AND questions_answered <= ?`,
			decimal4(&ability), decimal4(sess.StandardError), sess.QuestionsAnswered,
			string(sess.Status), formatTimePtr(sess.CompletedAt),
			sess.ID, sess.QuestionsAnswered)
		if err != nil {
			return assessment.ErrTransient("update session %s: %v", sess.ID, err).WithCause(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return assessment.ErrTransient("session %s was modified concurrently", sess.ID)
		}
	} else {
		_, err := r.tx.ExecContext(ctx, `
			INSERT INTO assessment_sessions
				(id, assigned_id, status, current_ability, standard_error, questions_answered,
				 rubric_snapshot, template_snapshot, started_at, completed_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.AssignedID, string(sess.Status), decimal4(&ability), decimal4(sess.StandardError),
			sess.QuestionsAnswered, mustJSON(sess.RubricSnapshot), mustJSON(sess.TemplateSnapshot),
			formatTime(sess.StartedAt), formatTimePtr(sess.CompletedAt), formatTime(sess.ExpiresAt))
		if err != nil {
			return assessment.ErrTransient("insert session %s: %v", sess.ID, err).WithCause(err)
		}
	}

	for i := range sess.Responses {
		if err := r.saveResponse(ctx, &sess.Responses[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *assignmentRepo) saveResponse(ctx context.Context, resp *assessment.Response) error {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM assessment_responses WHERE id = ?)`, resp.ID).Scan(&exists)
	if err != nil {
		return assessment.ErrTransient("check response %s: %v", resp.ID, err).WithCause(err)
	}

	responseData, err := marshalJSON(resp.ResponseData)
	if err != nil {
		return assessment.ErrInternal("response %s: %v", resp.ID, err)
	}

	if exists {
		_, err = r.tx.ExecContext(ctx, `
			UPDATE assessment_responses
			SET response_data = ?, is_correct = ?, raw_score = ?, submitted_at = ?, time_taken = ?
			WHERE id = ?`,
			responseData, nullableBool(resp.IsCorrect), decimal2(resp.RawScore),
			formatTimePtr(resp.SubmittedAt), nullableInt(resp.TimeTaken), resp.ID)
	} else {
		_, err = r.tx.ExecContext(ctx, `
			INSERT INTO assessment_responses
				(id, session_id, item_id, response_data, is_correct, raw_score, presented_at, submitted_at, time_taken)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			resp.ID, resp.SessionID, resp.ItemID, responseData, nullableBool(resp.IsCorrect),
			decimal2(resp.RawScore), formatTime(resp.PresentedAt), formatTimePtr(resp.SubmittedAt),
			nullableInt(resp.TimeTaken))
	}
	if err != nil {
		return assessment.ErrTransient("save response %s: %v", resp.ID, err).WithCause(err)
	}
	return nil
}

// Create inserts a new assignment row. Sessions are created later through
// Save.
func (r *assignmentRepo) Create(ctx context.Context, a *assessment.Assignment) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO assigned_assessments
			(id, template_id, test_taker_id, test_taker_type, assigned_by, assigned_at, due_at, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TemplateID, a.TestTakerID, a.TestTakerType, nullable(a.AssignedBy),
		formatTime(a.AssignedAt), formatTimePtr(a.DueAt), string(a.Status), nullable(a.Notes))
	if err != nil {
		return assessment.ErrTransient("insert assignment %s: %v", a.ID, err).WithCause(err)
	}
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

// mustJSON is for columns written only on insert where the value was just
// built in memory; a marshal failure here is a programming error.
func mustJSON(v any) any {
	out, err := marshalJSON(v)
	if err != nil {
		panic(err)
	}
	return out
}
