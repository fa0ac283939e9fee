package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"hdbackend/models"
)

// Client talks to the collaboration backend's REST surface. The realtime
// surface is handled separately by the connection manager.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type AutoStartWorklogResponse struct {
	Entry   *models.WorklogEntry `json:"entry"`
	Started bool                 `json:"started"`
}

// WhoAmI returns the agent record behind this client's credentials
func (c *Client) WhoAmI(ctx context.Context) (*models.Agent, error) {
	var agent models.Agent
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &agent); err != nil {
		return nil, fmt.Errorf("failed to identify agent: %w", err)
	}
	return &agent, nil
}

// FetchPresence returns the presence snapshot for every known agent
func (c *Client) FetchPresence(ctx context.Context) ([]models.PresenceRecord, error) {
	var records []models.PresenceRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/presence", nil, &records); err != nil {
		return nil, fmt.Errorf("failed to fetch presence snapshot: %w", err)
	}
	return records, nil
}

// SetPresence applies an explicit presence change for an agent
func (c *Client) SetPresence(
	ctx context.Context,
	agentID string,
	status models.PresenceStatus,
) (*models.PresenceRecord, error) {
	body := map[string]any{"presence_status": status}
	var record models.PresenceRecord
	path := "/api/v1/agents/" + url.PathEscape(agentID) + "/presence"
	if err := c.doJSON(ctx, http.MethodPatch, path, body, &record); err != nil {
		return nil, fmt.Errorf("failed to set presence: %w", err)
	}
	return &record, nil
}

// FetchRoster returns the full agent directory in roster order
func (c *Client) FetchRoster(ctx context.Context) ([]*models.Agent, error) {
	var agents []*models.Agent
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/roster", nil, &agents); err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}
	return agents, nil
}

// ResolveMentions resolves a mention query fragment server-side
func (c *Client) ResolveMentions(ctx context.Context, fragment string) ([]models.MentionCandidate, error) {
	var candidates []models.MentionCandidate
	path := "/api/v1/mentions?q=" + url.QueryEscape(fragment)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &candidates); err != nil {
		return nil, fmt.Errorf("failed to resolve mentions: %w", err)
	}
	return candidates, nil
}

// FetchViewers returns the current viewer set for a ticket
func (c *Client) FetchViewers(ctx context.Context, ticketID string) ([]models.ViewerEntry, error) {
	var viewers []models.ViewerEntry
	path := "/api/v1/tickets/" + url.PathEscape(ticketID) + "/viewers"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &viewers); err != nil {
		return nil, fmt.Errorf("failed to fetch viewers: %w", err)
	}
	return viewers, nil
}

// AutoStartWorklog opens (or returns) the running timer on a ticket
func (c *Client) AutoStartWorklog(ctx context.Context, ticketID string) (*models.WorklogEntry, bool, error) {
	body := map[string]any{"ticket_id": ticketID}
	var resp AutoStartWorklogResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/worklogs/auto-start", body, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to start worklog timer: %w", err)
	}
	return resp.Entry, resp.Started, nil
}

// AutoStopWorklog closes the running timer on a ticket, if any
func (c *Client) AutoStopWorklog(ctx context.Context, ticketID string) error {
	body := map[string]any{"ticket_id": ticketID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/worklogs/auto-stop", body, nil); err != nil {
		return fmt.Errorf("failed to stop worklog timer: %w", err)
	}
	return nil
}

// BeaconAutoStopWorklog is the unload-path variant of AutoStopWorklog:
// fire-and-forget with a short timeout, response ignored. The token travels
// as a query parameter because the unload path cannot set headers.
func (c *Client) BeaconAutoStopWorklog(ticketID string) {
	payload, err := json.Marshal(map[string]any{"ticket_id": ticketID})
	if err != nil {
		return
	}

	beaconURL := c.baseURL + "/api/v1/worklogs/auto-stop?auth_token=" + url.QueryEscape(c.apiToken)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, beaconURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("⚠️ Worklog stop beacon failed: %v", err)
		return
	}
	resp.Body.Close()
}

// CreateManualWorklog records a hand-entered closed interval
func (c *Client) CreateManualWorklog(
	ctx context.Context,
	ticketID string,
	startedAt, endedAt time.Time,
	description *string,
) (*models.WorklogEntry, error) {
	body := map[string]any{
		"ticket_id":   ticketID,
		"started_at":  startedAt,
		"ended_at":    endedAt,
		"description": description,
	}
	var entry models.WorklogEntry
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/worklogs", body, &entry); err != nil {
		return nil, fmt.Errorf("failed to create manual worklog entry: %w", err)
	}
	return &entry, nil
}

// ListTicketWorklogs returns every worklog entry for a ticket
func (c *Client) ListTicketWorklogs(ctx context.Context, ticketID string) ([]*models.WorklogEntry, error) {
	var entries []*models.WorklogEntry
	path := "/api/v1/tickets/" + url.PathEscape(ticketID) + "/worklogs"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to list worklog entries: %w", err)
	}
	return entries, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, target any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Error != "" {
			return fmt.Errorf("server responded %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("server responded %d", resp.StatusCode)
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
