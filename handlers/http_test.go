package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hdbackend/appctx"
	"hdbackend/core"
	"hdbackend/models"
	"hdbackend/services/presence"
	"hdbackend/services/roster"
	"hdbackend/services/viewers"
	"hdbackend/services/worklogs"
)

type handlerMocks struct {
	roster   *roster.MockRosterService
	presence *presence.MockPresenceService
	viewers  *viewers.MockViewersService
	worklogs *worklogs.MockWorklogsService
}

// newTestRouter wires the handler behind a stub auth layer that injects the
// given operator, mirroring what the token middleware does in production.
func newTestRouter(t *testing.T, operator *models.Agent) (*mux.Router, handlerMocks) {
	t.Helper()
	mocks := handlerMocks{
		roster:   new(roster.MockRosterService),
		presence: new(presence.MockPresenceService),
		viewers:  new(viewers.MockViewersService),
		worklogs: new(worklogs.MockWorklogsService),
	}
	handler := NewCollabHTTPHandler(mocks.roster, mocks.presence, mocks.viewers, mocks.worklogs)

	router := mux.NewRouter()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if operator != nil {
				r = r.WithContext(appctx.SetOperator(r.Context(), operator))
			}
			next(w, r)
		}
	}
	handler.RegisterRoutes(router, auth)
	return router, mocks
}

func testOperator(role models.AgentRole) *models.Agent {
	return &models.Agent{ID: core.NewID("op"), Slug: "maria", DisplayName: "Maria", Role: role}
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reqBody).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetPresence(t *testing.T) {
	operator := testOperator(models.AgentRoleAgent)
	router, mocks := newTestRouter(t, operator)
	mocks.presence.On("Snapshot", mock.Anything).Return([]models.PresenceRecord{
		{AgentID: operator.ID, AgentSlug: "maria", Status: models.PresenceOnline},
	})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/presence", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var records []models.PresenceRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, models.PresenceOnline, records[0].Status)
}

func TestHandleSetPresence(t *testing.T) {
	t.Run("agent sets own status", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAgent)
		router, mocks := newTestRouter(t, operator)
		mocks.presence.On("SetStatus", mock.Anything, operator.ID, models.PresenceBusy).
			Return(models.PresenceRecord{AgentID: operator.ID, Status: models.PresenceBusy}, nil)

		rec := doJSON(t, router, http.MethodPatch,
			"/api/v1/agents/"+operator.ID+"/presence",
			SetPresenceRequest{PresenceStatus: models.PresenceBusy})

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("agent may not set another agent's status", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAgent)
		router, _ := newTestRouter(t, operator)
		other := core.NewID("op")

		rec := doJSON(t, router, http.MethodPatch,
			"/api/v1/agents/"+other+"/presence",
			SetPresenceRequest{PresenceStatus: models.PresenceBusy})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin may set anyone's status", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAdmin)
		router, mocks := newTestRouter(t, operator)
		other := core.NewID("op")
		mocks.presence.On("SetStatus", mock.Anything, other, models.PresenceAway).
			Return(models.PresenceRecord{AgentID: other, Status: models.PresenceAway}, nil)

		rec := doJSON(t, router, http.MethodPatch,
			"/api/v1/agents/"+other+"/presence",
			SetPresenceRequest{PresenceStatus: models.PresenceAway})

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("validation failure maps to 400", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAgent)
		router, mocks := newTestRouter(t, operator)
		mocks.presence.On("SetStatus", mock.Anything, operator.ID, models.PresenceStatus("napping")).
			Return(models.PresenceRecord{}, fmt.Errorf("%w: unknown presence status", core.ErrInvalid))

		rec := doJSON(t, router, http.MethodPatch,
			"/api/v1/agents/"+operator.ID+"/presence",
			SetPresenceRequest{PresenceStatus: models.PresenceStatus("napping")})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleResolveMentions(t *testing.T) {
	operator := testOperator(models.AgentRoleAgent)
	router, mocks := newTestRouter(t, operator)
	mocks.roster.On("MentionRoster", mock.Anything).Return([]models.MentionCandidate{
		{ID: "op_1", DisplayName: "John Smith"},
		{ID: "op_2", DisplayName: "Pat Doe"},
	}, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/mentions?q=jo", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var candidates []models.MentionCandidate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &candidates))
	require.Len(t, candidates, 1)
	assert.Equal(t, "John Smith", candidates[0].DisplayName)
}

func TestHandleGetViewers(t *testing.T) {
	operator := testOperator(models.AgentRoleAgent)
	router, mocks := newTestRouter(t, operator)
	mocks.viewers.On("GetViewers", mock.Anything, "tkt-1").Return([]models.ViewerEntry{
		{UserID: "u1", DisplayName: "Maria"},
	})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/tickets/tkt-1/viewers", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.ViewerEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}

func TestHandleAutoWorklogs(t *testing.T) {
	t.Run("start returns entry and started flag", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAgent)
		router, mocks := newTestRouter(t, operator)
		entry := &models.WorklogEntry{ID: core.NewID("wl"), AgentID: operator.ID, TicketID: "tkt-1"}
		mocks.worklogs.On("StartAuto", mock.Anything, operator.ID, "tkt-1").Return(entry, true, nil)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/worklogs/auto-start",
			AutoWorklogRequest{TicketID: "tkt-1"})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp AutoStartWorklogResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Started)
		assert.Equal(t, entry.ID, resp.Entry.ID)
	})

	t.Run("stop responds 202 even with nothing running", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAgent)
		router, mocks := newTestRouter(t, operator)
		mocks.worklogs.On("StopAuto", mock.Anything, operator.ID, "tkt-1").
			Return(mo.None[*models.WorklogEntry](), nil)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/worklogs/auto-stop",
			AutoWorklogRequest{TicketID: "tkt-1"})

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})
}

func TestHandleCreateManualWorklog(t *testing.T) {
	t.Run("records closed interval", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAgent)
		router, mocks := newTestRouter(t, operator)
		start := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
		end := time.Now().UTC().Truncate(time.Second)
		entry := &models.WorklogEntry{ID: core.NewID("wl"), AgentID: operator.ID, TicketID: "tkt-1"}
		mocks.worklogs.On("CreateManual", mock.Anything, operator.ID, "tkt-1", start, end, (*string)(nil)).
			Return(entry, nil)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/worklogs",
			ManualWorklogRequest{TicketID: "tkt-1", StartedAt: start, EndedAt: end})

		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("inverted interval maps to 400", func(t *testing.T) {
		operator := testOperator(models.AgentRoleAgent)
		router, mocks := newTestRouter(t, operator)
		mocks.worklogs.On("CreateManual", mock.Anything, operator.ID, "tkt-1",
			mock.Anything, mock.Anything, (*string)(nil)).
			Return(nil, fmt.Errorf("%w: ended_at must be after started_at", core.ErrInvalid))

		start := time.Now()
		rec := doJSON(t, router, http.MethodPost, "/api/v1/worklogs",
			ManualWorklogRequest{TicketID: "tkt-1", StartedAt: start, EndedAt: start.Add(-time.Minute)})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		router, _ := newTestRouter(t, nil)

		rec := doJSON(t, router, http.MethodPost, "/api/v1/worklogs",
			ManualWorklogRequest{TicketID: "tkt-1"})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
