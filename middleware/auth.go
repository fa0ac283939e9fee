package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"hdbackend/appctx"
	"hdbackend/services"
)

// TokenAuthMiddleware authenticates requests against the roster's API tokens
type TokenAuthMiddleware struct {
	rosterService services.RosterService
}

// NewTokenAuthMiddleware creates a new authentication middleware instance
func NewTokenAuthMiddleware(rosterService services.RosterService) *TokenAuthMiddleware {
	return &TokenAuthMiddleware{rosterService: rosterService}
}

// WithAuth wraps an HTTP handler with API token authentication
func (m *TokenAuthMiddleware) WithAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("🔐 Authentication middleware processing request from %s", r.RemoteAddr)

		token, ok := m.extractToken(r)
		if !ok {
			log.Printf("❌ Missing or malformed credentials")
			m.writeErrorResponse(w, "missing or malformed credentials", http.StatusUnauthorized)
			return
		}

		maybeAgent, err := m.rosterService.GetAgentByAPIToken(r.Context(), token)
		if err != nil {
			log.Printf("❌ Failed to look up agent by token: %v", err)
			m.writeErrorResponse(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if !maybeAgent.IsPresent() {
			log.Printf("❌ Unknown API token")
			m.writeErrorResponse(w, "invalid token", http.StatusUnauthorized)
			return
		}

		agent := maybeAgent.MustGet()
		log.Printf("✅ Agent authenticated successfully: %s", agent.ID)
		ctx := appctx.SetOperator(r.Context(), agent)
		r = r.WithContext(ctx)

		next(w, r)
	}
}

// extractToken pulls the API token from the Authorization header, falling back
// to the auth_token query parameter. The fallback exists for unload beacons,
// which cannot set request headers.
func (m *TokenAuthMiddleware) extractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", false
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		return token, token != ""
	}

	token := r.URL.Query().Get("auth_token")
	return token, token != ""
}

// writeErrorResponse writes a standardized error response
func (m *TokenAuthMiddleware) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Printf("❌ Failed to encode error response: %v", err)
	}
}
