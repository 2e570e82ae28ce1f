package assessment

import "time"

// Session status values. All transitions out of IN_PROGRESS are terminal.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
	SessionExpired    SessionStatus = "EXPIRED"
)

// Assignment status values.
type AssignmentStatus string

const (
	AssignmentPending    AssignmentStatus = "PENDING"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentExpired    AssignmentStatus = "EXPIRED"
	AssignmentCancelled  AssignmentStatus = "CANCELLED"
)

// Response records one presented question and, once submitted, its answer.
// A response is pending while SubmittedAt is nil; a session holds at most
// one pending response at a time.
type Response struct {
	ID           string
	SessionID    string
	ItemID       string
	ResponseData map[string]any
	IsCorrect    *bool
	RawScore     *float64
	PresentedAt  time.Time
	SubmittedAt  *time.Time
	TimeTaken    *int
}

// Pending reports whether the response has not been submitted yet.
func (r *Response) Pending() bool { return r.SubmittedAt == nil }

// Score returns the raw score, falling back to IsCorrect.
func (r *Response) Score() float64 {
	if r.RawScore != nil {
		return *r.RawScore
	}
	if r.IsCorrect != nil && *r.IsCorrect {
		return 1.0
	}
	return 0.0
}

// hasValidResponse checks that submitted data carries a selected option.
func (r *Response) hasValidResponse(data map[string]any) bool {
	if data == nil {
		return false
	}
	v, ok := data["selected_option"]
	if !ok || v == nil {
		return false
	}
	s, isString := v.(string)
	return !isString || s != ""
}

// Session is one examination attempt. It is owned by its Assignment and
// must only be mutated through aggregate methods.
type Session struct {
	ID                string
	AssignedID        string
	CurrentAbility    float64
	StandardError     *float64
	QuestionsAnswered int
	Status            SessionStatus
	RubricSnapshot    map[string]any
	TemplateSnapshot  map[string]any
	StartedAt         time.Time
	CompletedAt       *time.Time
	ExpiresAt         time.Time
	Responses         []Response
}

// CanAcceptAnswer reports whether the session is in progress and not past
// its deadline.
func (s *Session) CanAcceptAnswer(now time.Time) bool {
	return s.Status == SessionInProgress && !s.TimeExpired(now)
}

// TimeExpired reports whether the wall-clock budget has run out.
func (s *Session) TimeExpired(now time.Time) bool { return now.After(s.ExpiresAt) }

// Terminated reports whether the session has left IN_PROGRESS.
func (s *Session) Terminated() bool { return s.Status != SessionInProgress }

// Complete reports whether the session finished normally.
func (s *Session) Complete() bool { return s.Status == SessionCompleted }

// ReachedMinQuestions reports whether the answer count has hit the floor.
func (s *Session) ReachedMinQuestions(min int) bool { return s.QuestionsAnswered >= min }

// ReachedMaxQuestions reports whether the answer count has hit the ceiling.
func (s *Session) ReachedMaxQuestions(max int) bool { return s.QuestionsAnswered >= max }

// SufficientPrecision reports whether the standard error is at or below the
// stopping threshold. A session with no estimate never qualifies.
func (s *Session) SufficientPrecision(stoppingSE float64) bool {
	return s.StandardError != nil && *s.StandardError <= stoppingSE
}

// PendingResponse returns the current unsubmitted response, or nil.
func (s *Session) PendingResponse() *Response {
	for i := range s.Responses {
		if s.Responses[i].Pending() {
			return &s.Responses[i]
		}
	}
	return nil
}

// SubmittedResponses returns all responses that have been answered, in
// presentation order.
func (s *Session) SubmittedResponses() []Response {
	out := make([]Response, 0, len(s.Responses))
	for i := range s.Responses {
		if !s.Responses[i].Pending() {
			out = append(out, s.Responses[i])
		}
	}
	return out
}

// AnsweredItemIDs returns the item ids of every presented response,
// including the pending one.
func (s *Session) AnsweredItemIDs() []string {
	ids := make([]string, 0, len(s.Responses))
	for i := range s.Responses {
		ids = append(ids, s.Responses[i].ItemID)
	}
	return ids
}

// Assignment is the aggregate root. It owns at most one active Session and
// is the single write path for sessions and responses.
type Assignment struct {
	ID            string
	TemplateID    string
	TestTakerID   string
	TestTakerType string
	AssignedBy    *string
	AssignedAt    time.Time
	DueAt         *time.Time
	Status        AssignmentStatus
	Notes         *string
	Session       *Session
}

// CanStart reports whether a session may be started: the assignment must be
// PENDING and not past due.
func (a *Assignment) CanStart(now time.Time) bool {
	if a.Status != AssignmentPending {
		return false
	}
	if a.DueAt != nil && now.After(*a.DueAt) {
		return false
	}
	return true
}

// Expired reports whether the assignment is past due without completion.
func (a *Assignment) Expired(now time.Time) bool {
	if a.DueAt == nil {
		return false
	}
	return now.After(*a.DueAt) && a.Status != AssignmentCompleted
}

// HasActiveSession reports whether an IN_PROGRESS session exists.
func (a *Assignment) HasActiveSession() bool {
	return a.Session != nil && a.Session.Status == SessionInProgress
}

// StartSession creates the session for this assignment and moves the
// assignment to IN_PROGRESS.
func (a *Assignment) StartSession(sessionID string, now, expiresAt time.Time, startingAbility float64, rubricSnapshot, templateSnapshot map[string]any) (*Session, error) {
	if !a.CanStart(now) {
		return nil, ErrInvalidSessionState("cannot start session: assignment status is %s", a.Status)
	}
	if a.HasActiveSession() {
		return nil, ErrInvalidSessionState("an active session already exists for assignment %s", a.ID)
	}

	a.Session = &Session{
		ID:                sessionID,
		AssignedID:        a.ID,
		CurrentAbility:    startingAbility,
		StandardError:     nil,
		QuestionsAnswered: 0,
		Status:            SessionInProgress,
		RubricSnapshot:    rubricSnapshot,
		TemplateSnapshot:  templateSnapshot,
		StartedAt:         now,
		CompletedAt:       nil,
		ExpiresAt:         expiresAt,
		Responses:         nil,
	}
	a.Status = AssignmentInProgress
	return a.Session, nil
}

// PresentQuestion appends a pending response for the given item. At most
// one pending response may exist at a time.
func (a *Assignment) PresentQuestion(responseID, itemID string, now time.Time) (*Response, error) {
	if a.Session == nil || a.Session.Status != SessionInProgress {
		return nil, ErrInvalidSessionState("no active session to present question")
	}
	if a.Session.PendingResponse() != nil {
		return nil, ErrInvalidSessionState("a pending response already exists for session %s", a.Session.ID)
	}

	a.Session.Responses = append(a.Session.Responses, Response{
		ID:           responseID,
		SessionID:    a.Session.ID,
		ItemID:       itemID,
		ResponseData: map[string]any{},
		PresentedAt:  now,
	})
	return &a.Session.Responses[len(a.Session.Responses)-1], nil
}

// SubmitResponse finalizes the pending response with the scored answer and
// increments the answered counter.
func (a *Assignment) SubmitResponse(responseData map[string]any, isCorrect bool, score float64, timeTaken *int, now time.Time) (*Response, error) {
	if a.Session == nil {
		return nil, ErrInvalidSessionState("no session exists for assignment %s", a.ID)
	}
	if !a.Session.CanAcceptAnswer(now) {
		return nil, ErrInvalidSessionState("session %s cannot accept answers", a.Session.ID)
	}

	pending := a.Session.PendingResponse()
	if pending == nil {
		return nil, ErrSessionNotFound("no pending response for session %s", a.Session.ID)
	}
	if !pending.hasValidResponse(responseData) {
		return nil, ErrInvalidResponse("response data must include selected_option")
	}

	pending.ResponseData = responseData
	pending.IsCorrect = &isCorrect
	pending.RawScore = &score
	pending.TimeTaken = timeTaken
	submittedAt := now
	pending.SubmittedAt = &submittedAt

	a.Session.QuestionsAnswered++
	return pending, nil
}

// UpdateAbilityEstimate writes the latest theta and standard error.
func (a *Assignment) UpdateAbilityEstimate(ability float64, standardError *float64) error {
	if a.Session == nil {
		return ErrInvalidSessionState("no session exists for assignment %s", a.ID)
	}
	a.Session.CurrentAbility = ability
	a.Session.StandardError = standardError
	return nil
}

// CompleteAssessment terminates the session and assignment normally.
func (a *Assignment) CompleteAssessment(now time.Time) error {
	if a.Session == nil {
		return ErrInvalidSessionState("no session to complete")
	}
	a.Session.Status = SessionCompleted
	completedAt := now
	a.Session.CompletedAt = &completedAt
	a.Status = AssignmentCompleted
	return nil
}

// CancelSession marks the session cancelled. The assignment keeps its
// status so the taker may be reassigned.
func (a *Assignment) CancelSession() error {
	if a.Session == nil {
		return ErrInvalidSessionState("no session to cancel")
	}
	a.Session.Status = SessionCancelled
	return nil
}

// ExpireSession marks both session and assignment expired.
func (a *Assignment) ExpireSession() error {
	if a.Session == nil {
		return ErrInvalidSessionState("no session to expire")
	}
	a.Session.Status = SessionExpired
	a.Status = AssignmentExpired
	return nil
}

// CurrentAbility returns the session's theta, or 0 when no session exists.
func (a *Assignment) CurrentAbility() float64 {
	if a.Session == nil {
		return 0.0
	}
	return a.Session.CurrentAbility
}

// StandardError returns the session's standard error, or nil.
func (a *Assignment) StandardError() *float64 {
	if a.Session == nil {
		return nil
	}
	return a.Session.StandardError
}

// QuestionsAnswered returns the session's answered counter, or 0.
func (a *Assignment) QuestionsAnswered() int {
	if a.Session == nil {
		return 0
	}
	return a.Session.QuestionsAnswered
}

// SessionComplete reports whether the owned session finished normally.
func (a *Assignment) SessionComplete() bool {
	return a.Session != nil && a.Session.Complete()
}
