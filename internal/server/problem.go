package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"flightpath/internal/assessment"
)

// Problem is an RFC 9457 problem details body. Every non-2xx response
// from the API uses this shape with content type application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func statusForKind(k assessment.Kind) int {
	switch k {
	case assessment.KindNotFound, assessment.KindNoEligibleItems, assessment.KindConfigurationMissing:
		return http.StatusNotFound
	case assessment.KindInvalidState, assessment.KindInvalidInput:
		return http.StatusBadRequest
	case assessment.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeProblem maps a domain error to its problem+json response. Errors
// that are not domain errors become opaque 500s; their detail stays in
// the log, not on the wire.
func (s *Server) writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	problem := Problem{
		Type:     "/errors/internal-server-error",
		Title:    "Internal server error",
		Status:   http.StatusInternalServerError,
		Instance: r.URL.Path,
	}

	var de *assessment.Error
	if errors.As(err, &de) {
		problem.Type = "/errors/" + de.Slug
		problem.Title = de.Title
		problem.Status = statusForKind(de.Kind)
		if problem.Status < http.StatusInternalServerError {
			problem.Detail = de.Detail
		}
	}

	if problem.Status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", problem.Status),
			zap.Error(err))
	} else {
		s.logger.Info("request rejected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", problem.Status),
			zap.String("type", problem.Type))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	if encErr := json.NewEncoder(w).Encode(problem); encErr != nil {
		s.logger.Error("encode problem response", zap.Error(encErr))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
