package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hdbackend/appctx"
	"hdbackend/core"
	"hdbackend/models"
	"hdbackend/services"
	"hdbackend/services/mentions"
)

type CollabHTTPHandler struct {
	rosterService   services.RosterService
	presenceService services.PresenceService
	viewersService  services.ViewersService
	worklogsService services.WorklogsService
}

func NewCollabHTTPHandler(
	rosterService services.RosterService,
	presenceService services.PresenceService,
	viewersService services.ViewersService,
	worklogsService services.WorklogsService,
) *CollabHTTPHandler {
	return &CollabHTTPHandler{
		rosterService:   rosterService,
		presenceService: presenceService,
		viewersService:  viewersService,
		worklogsService: worklogsService,
	}
}

type SetPresenceRequest struct {
	PresenceStatus models.PresenceStatus `json:"presence_status"`
}

type ManualWorklogRequest struct {
	TicketID    string    `json:"ticket_id"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	Description *string   `json:"description"`
}

type AutoWorklogRequest struct {
	TicketID string `json:"ticket_id"`
}

type AutoStartWorklogResponse struct {
	Entry   *models.WorklogEntry `json:"entry"`
	Started bool                 `json:"started"`
}

// HandleGetPresence returns the presence snapshot for every known agent
func (h *CollabHTTPHandler) HandleGetPresence(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Presence snapshot request received from %s", r.RemoteAddr)

	records := h.presenceService.Snapshot(r.Context())
	h.writeJSONResponse(w, http.StatusOK, records)
}

// HandleSetPresence applies an explicit presence change for an agent.
// Agents may only change their own status; admins may change anyone's.
func (h *CollabHTTPHandler) HandleSetPresence(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Set presence request received from %s", r.RemoteAddr)

	operator, ok := appctx.GetOperator(r.Context())
	if !ok {
		log.Printf("❌ Operator not found in context")
		h.writeErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	agentID := mux.Vars(r)["agentID"]
	if operator.ID != agentID && operator.Role != models.AgentRoleAdmin {
		log.Printf("❌ Operator %s may not change presence for agent %s", operator.ID, agentID)
		h.writeErrorResponse(w, "forbidden", http.StatusForbidden)
		return
	}

	var req SetPresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to decode set presence request: %v", err)
		h.writeErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.presenceService.SetStatus(r.Context(), agentID, req.PresenceStatus)
	if err != nil {
		if core.IsValidationError(err) {
			h.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("❌ Failed to set presence: %v", err)
		h.writeErrorResponse(w, "failed to set presence", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, record)
}

// HandleWhoAmI returns the agent record behind the presented credentials
func (h *CollabHTTPHandler) HandleWhoAmI(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Whoami request received from %s", r.RemoteAddr)

	operator, ok := appctx.GetOperator(r.Context())
	if !ok {
		h.writeErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, operator)
}

// HandleGetRoster returns the full agent directory in roster order
func (h *CollabHTTPHandler) HandleGetRoster(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Roster request received from %s", r.RemoteAddr)

	agents, err := h.rosterService.ListAgents(r.Context())
	if err != nil {
		log.Printf("❌ Failed to list agents: %v", err)
		h.writeErrorResponse(w, "failed to list agents", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, agents)
}

// HandleResolveMentions resolves a mention query fragment against the roster
func (h *CollabHTTPHandler) HandleResolveMentions(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Mention resolution request received from %s", r.RemoteAddr)

	roster, err := h.rosterService.MentionRoster(r.Context())
	if err != nil {
		log.Printf("❌ Failed to build mention roster: %v", err)
		h.writeErrorResponse(w, "failed to build mention roster", http.StatusInternalServerError)
		return
	}

	fragment := r.URL.Query().Get("q")
	h.writeJSONResponse(w, http.StatusOK, mentions.Resolve(roster, fragment))
}

// HandleGetViewers returns the current viewer set for a ticket
func (h *CollabHTTPHandler) HandleGetViewers(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticketID"]
	log.Printf("📋 Viewer set request for ticket %s from %s", ticketID, r.RemoteAddr)

	viewers := h.viewersService.GetViewers(r.Context(), ticketID)
	h.writeJSONResponse(w, http.StatusOK, viewers)
}

// HandleListTicketWorklogs returns every worklog entry for a ticket
func (h *CollabHTTPHandler) HandleListTicketWorklogs(w http.ResponseWriter, r *http.Request) {
	ticketID := mux.Vars(r)["ticketID"]
	log.Printf("📋 Worklog list request for ticket %s from %s", ticketID, r.RemoteAddr)

	entries, err := h.worklogsService.ListByTicket(r.Context(), ticketID)
	if err != nil {
		if core.IsValidationError(err) {
			h.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("❌ Failed to list worklog entries: %v", err)
		h.writeErrorResponse(w, "failed to list worklog entries", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, entries)
}

// HandleListAgentWorklogs returns every worklog entry recorded by an agent
func (h *CollabHTTPHandler) HandleListAgentWorklogs(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentID"]
	log.Printf("📋 Worklog list request for agent %s from %s", agentID, r.RemoteAddr)

	entries, err := h.worklogsService.ListByAgent(r.Context(), agentID)
	if err != nil {
		log.Printf("❌ Failed to list worklog entries: %v", err)
		h.writeErrorResponse(w, "failed to list worklog entries", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, entries)
}

// HandleCreateManualWorklog records a hand-entered closed interval for the
// authenticated agent.
func (h *CollabHTTPHandler) HandleCreateManualWorklog(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Manual worklog request received from %s", r.RemoteAddr)

	operator, ok := appctx.GetOperator(r.Context())
	if !ok {
		h.writeErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req ManualWorklogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to decode manual worklog request: %v", err)
		h.writeErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := h.worklogsService.CreateManual(
		r.Context(),
		operator.ID,
		req.TicketID,
		req.StartedAt,
		req.EndedAt,
		req.Description,
	)
	if err != nil {
		if core.IsValidationError(err) {
			h.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("❌ Failed to create manual worklog entry: %v", err)
		h.writeErrorResponse(w, "failed to create worklog entry", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, entry)
}

// HandleAutoStartWorklog opens (or returns) the running timer for the
// authenticated agent on a ticket.
func (h *CollabHTTPHandler) HandleAutoStartWorklog(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Auto worklog start request received from %s", r.RemoteAddr)

	operator, ok := appctx.GetOperator(r.Context())
	if !ok {
		h.writeErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req AutoWorklogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to decode auto start request: %v", err)
		h.writeErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}

	entry, started, err := h.worklogsService.StartAuto(r.Context(), operator.ID, req.TicketID)
	if err != nil {
		if core.IsValidationError(err) {
			h.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("❌ Failed to start auto worklog timer: %v", err)
		h.writeErrorResponse(w, "failed to start worklog timer", http.StatusInternalServerError)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, AutoStartWorklogResponse{Entry: entry, Started: started})
}

// HandleAutoStopWorklog closes the running timer for the authenticated agent
// on a ticket. Responds 202 regardless of whether a timer was open: the
// caller is often an unload beacon that never reads the response.
func (h *CollabHTTPHandler) HandleAutoStopWorklog(w http.ResponseWriter, r *http.Request) {
	log.Printf("📋 Auto worklog stop request received from %s", r.RemoteAddr)

	operator, ok := appctx.GetOperator(r.Context())
	if !ok {
		h.writeErrorResponse(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req AutoWorklogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Failed to decode auto stop request: %v", err)
		h.writeErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}

	maybeEntry, err := h.worklogsService.StopAuto(r.Context(), operator.ID, req.TicketID)
	if err != nil {
		log.Printf("❌ Failed to stop auto worklog timer: %v", err)
		h.writeErrorResponse(w, "failed to stop worklog timer", http.StatusInternalServerError)
		return
	}

	if maybeEntry.IsPresent() {
		h.writeJSONResponse(w, http.StatusAccepted, maybeEntry.MustGet())
		return
	}
	h.writeJSONResponse(w, http.StatusAccepted, map[string]any{"closed": false})
}

// RegisterRoutes attaches every REST endpoint to the router, wrapped in auth
func (h *CollabHTTPHandler) RegisterRoutes(router *mux.Router, auth func(http.HandlerFunc) http.HandlerFunc) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/me", auth(h.HandleWhoAmI)).Methods(http.MethodGet)
	api.HandleFunc("/presence", auth(h.HandleGetPresence)).Methods(http.MethodGet)
	api.HandleFunc("/agents/{agentID}/presence", auth(h.HandleSetPresence)).Methods(http.MethodPatch)
	api.HandleFunc("/agents/{agentID}/worklogs", auth(h.HandleListAgentWorklogs)).Methods(http.MethodGet)
	api.HandleFunc("/roster", auth(h.HandleGetRoster)).Methods(http.MethodGet)
	api.HandleFunc("/mentions", auth(h.HandleResolveMentions)).Methods(http.MethodGet)
	api.HandleFunc("/tickets/{ticketID}/viewers", auth(h.HandleGetViewers)).Methods(http.MethodGet)
	api.HandleFunc("/tickets/{ticketID}/worklogs", auth(h.HandleListTicketWorklogs)).Methods(http.MethodGet)
	api.HandleFunc("/worklogs", auth(h.HandleCreateManualWorklog)).Methods(http.MethodPost)
	api.HandleFunc("/worklogs/auto-start", auth(h.HandleAutoStartWorklog)).Methods(http.MethodPost)
	api.HandleFunc("/worklogs/auto-stop", auth(h.HandleAutoStopWorklog)).Methods(http.MethodPost)
}

// writeJSONResponse writes a JSON response with the given status code
func (h *CollabHTTPHandler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("❌ Failed to encode JSON response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func (h *CollabHTTPHandler) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSONResponse(w, statusCode, map[string]string{"error": message})
}
