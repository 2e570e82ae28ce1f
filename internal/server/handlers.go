package server

import (
	"encoding/json"
	"net/http"

	"flightpath/internal/app"
	"flightpath/internal/assessment"
)

type startResponse struct {
	SessionID     string         `json:"session_id"`
	FirstQuestion app.PublicItem `json:"first_question"`
	Progress      app.Progress   `json:"progress"`
}

// handleStart starts (or resumes) the adaptive session for an assignment
// and returns its first question.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	assignedID := r.PathValue("assigned_id")
	if assignedID == "" {
		s.writeProblem(w, r, assessment.ErrInvalidResponse("assigned_id is required"))
		return
	}

	result, err := s.start.Execute(r.Context(), app.StartPlacementTestCommand{AssignedID: assignedID})
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, startResponse{
		SessionID:     result.SessionID,
		FirstQuestion: result.FirstQuestion,
		Progress:      result.Progress,
	})
}

type answerRequest struct {
	ResponseData map[string]any `json:"response_data"`
	TimeTaken    *int           `json:"time_taken,omitempty"`
}

type answerResponse struct {
	NextQuestion *app.PublicItem `json:"next_question"`
	Progress     app.Progress    `json:"progress"`
	IsComplete   bool            `json:"assessment_complete"`
	IsCorrect    bool            `json:"is_correct"`
}

// handleAnswer scores the pending question and returns either the next
// question or the completed placement.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if sessionID == "" {
		s.writeProblem(w, r, assessment.ErrInvalidResponse("session_id is required"))
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeProblem(w, r, assessment.ErrInvalidResponse("malformed request body: %v", err))
		return
	}
	if req.TimeTaken != nil && *req.TimeTaken < 0 {
		s.writeProblem(w, r, assessment.ErrInvalidResponse("time_taken must not be negative"))
		return
	}

	result, err := s.submit.Execute(r.Context(), app.SubmitAnswerCommand{
		SessionID:    sessionID,
		ResponseData: req.ResponseData,
		TimeTaken:    req.TimeTaken,
	})
	if err != nil {
		s.writeProblem(w, r, err)
		return
	}

	_ = writeJSON(w, http.StatusOK, answerResponse{
		NextQuestion: result.NextQuestion,
		Progress:     result.Progress,
		IsComplete:   result.IsComplete,
		IsCorrect:    result.IsCorrect,
	})
}

// handleHealthz reports liveness plus a database ping.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.pinger.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	_ = writeJSON(w, code, map[string]string{"status": status})
}
