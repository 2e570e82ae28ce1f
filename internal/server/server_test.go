package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flightpath/internal/app"
	"flightpath/internal/assessment"
	"flightpath/internal/config"
	"flightpath/internal/irt"
	"flightpath/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := zap.NewNop()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), 2, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Seed(context.Background(), store.DefaultSeedItems()))

	cfg := config.DefaultConfig()
	cat := assessment.NewCATService(irt.NewModel())
	clock := app.SystemClock{}
	start := app.NewStartPlacementTest(st, cat, clock, logger)
	submit := app.NewSubmitAnswer(st, cat, clock, logger)
	return New(cfg, start, submit, st, logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestStartPlacement(t *testing.T) {
	t.Run("starts the demo assignment", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/"+store.SeedAssignmentID+"/start", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody[startResponse](t, rec)
		assert.NotEmpty(t, body.SessionID)
		assert.NotEmpty(t, body.FirstQuestion.ID)
		assert.NotEmpty(t, body.FirstQuestion.Content.Options)
		assert.Equal(t, 0, body.Progress.QuestionsCompleted)
		assert.NotContains(t, rec.Body.String(), "correct_answer")
	})

	t.Run("start again resumes the same session", func(t *testing.T) {
		srv := newTestServer(t)
		path := "/api/v1/placement/" + store.SeedAssignmentID + "/start"

		first := decodeBody[startResponse](t, doJSON(t, srv.Handler(), http.MethodPost, path, nil))
		rec := doJSON(t, srv.Handler(), http.MethodPost, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		second := decodeBody[startResponse](t, rec)

		assert.Equal(t, first.SessionID, second.SessionID)
		assert.Equal(t, first.FirstQuestion.ID, second.FirstQuestion.ID)
	})

	t.Run("unknown assignment yields problem json", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/ghost/start", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		problem := decodeBody[Problem](t, rec)
		assert.Equal(t, "/errors/assigned-assessment-not-found", problem.Type)
		assert.Equal(t, http.StatusNotFound, problem.Status)
		assert.Equal(t, "/api/v1/placement/ghost/start", problem.Instance)
	})
}

func TestSubmitAnswerEndpoint(t *testing.T) {
	startSession := func(t *testing.T, srv *Server) startResponse {
		t.Helper()
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/"+store.SeedAssignmentID+"/start", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeBody[startResponse](t, rec)
	}

	t.Run("accepts an answer and serves the next question", func(t *testing.T) {
		srv := newTestServer(t)
		started := startSession(t, srv)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/"+started.SessionID+"/answer",
			map[string]any{"response_data": map[string]any{"selected_option": started.FirstQuestion.Content.Options[0]}})
		require.Equal(t, http.StatusOK, rec.Code)

		body := decodeBody[answerResponse](t, rec)
		assert.False(t, body.IsComplete)
		require.NotNil(t, body.NextQuestion)
		assert.NotEqual(t, started.FirstQuestion.ID, body.NextQuestion.ID)
		assert.Equal(t, 1, body.Progress.QuestionsCompleted)
		assert.NotNil(t, body.Progress.CurrentAbility)
		assert.NotContains(t, rec.Body.String(), "correct_answer")
	})

	t.Run("runs to completion with a placed level", func(t *testing.T) {
		srv := newTestServer(t)
		started := startSession(t, srv)

		sessionID := started.SessionID
		option := started.FirstQuestion.Content.Options[0]
		var last answerResponse
		for i := 0; i < len(store.DefaultSeedItems()); i++ {
			rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/"+sessionID+"/answer",
				map[string]any{"response_data": map[string]any{"selected_option": option}})
			require.Equal(t, http.StatusOK, rec.Code)
			last = decodeBody[answerResponse](t, rec)
			if last.IsComplete {
				break
			}
			option = last.NextQuestion.Content.Options[0]
		}

		assert.True(t, last.IsComplete)
		assert.Nil(t, last.NextQuestion)
		assert.NotEmpty(t, last.Progress.ProficiencyLevel)

		// The completed session refuses further answers.
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/"+sessionID+"/answer",
			map[string]any{"response_data": map[string]any{"selected_option": option}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		problem := decodeBody[Problem](t, rec)
		assert.Equal(t, "/errors/session-not-found", problem.Type)
	})

	t.Run("missing selected_option is a 400", func(t *testing.T) {
		srv := newTestServer(t)
		started := startSession(t, srv)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/"+started.SessionID+"/answer",
			map[string]any{"response_data": map[string]any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		problem := decodeBody[Problem](t, rec)
		assert.Equal(t, "/errors/invalid-response", problem.Type)
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		srv := newTestServer(t)
		started := startSession(t, srv)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/placement/"+started.SessionID+"/answer",
			bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative time_taken is a 400", func(t *testing.T) {
		srv := newTestServer(t)
		started := startSession(t, srv)

		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/"+started.SessionID+"/answer",
			map[string]any{"response_data": map[string]any{"selected_option": "x"}, "time_taken": -3})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session is a 404", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/placement/ghost/answer",
			map[string]any{"response_data": map[string]any{"selected_option": "x"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		problem := decodeBody[Problem](t, rec)
		assert.Equal(t, "/errors/session-not-found", problem.Type)
	})
}
