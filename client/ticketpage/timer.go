package ticketpage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"hdbackend/models"
)

// TimerState is the local view of the automatic work timer
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerStopped TimerState = "stopped"
)

// WorklogAPI is the slice of the REST client the timer depends on
type WorklogAPI interface {
	AutoStartWorklog(ctx context.Context, ticketID string) (*models.WorklogEntry, bool, error)
	AutoStopWorklog(ctx context.Context, ticketID string) error
	BeaconAutoStopWorklog(ticketID string)
	CreateManualWorklog(
		ctx context.Context,
		ticketID string,
		startedAt, endedAt time.Time,
		description *string,
	) (*models.WorklogEntry, error)
}

// TimerController drives the automatic work timer for one open ticket page.
// The timer follows assignment: it runs while the ticket is assigned to the
// local agent and the page is open, and stops when either ends.
type TimerController struct {
	api         WorklogAPI
	ticketID    string
	selfAgentID string

	mutex sync.Mutex
	state TimerState
	entry *models.WorklogEntry
}

func NewTimerController(api WorklogAPI, ticketID, selfAgentID string) *TimerController {
	return &TimerController{
		api:         api,
		ticketID:    ticketID,
		selfAgentID: selfAgentID,
		state:       TimerIdle,
	}
}

func (tc *TimerController) State() TimerState {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	return tc.state
}

// Entry returns the running entry, nil while idle or stopped
func (tc *TimerController) Entry() *models.WorklogEntry {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()
	return tc.entry
}

// HandleAssigneeChange reacts to the ticket's assignee changing. A nil
// assignee means unassigned. Starting is idempotent server-side, so a page
// reload on an already-assigned ticket resumes the running timer.
func (tc *TimerController) HandleAssigneeChange(ctx context.Context, assigneeID *string) error {
	assignedToSelf := assigneeID != nil && *assigneeID == tc.selfAgentID

	tc.mutex.Lock()
	running := tc.state == TimerRunning
	tc.mutex.Unlock()

	switch {
	case assignedToSelf && !running:
		return tc.start(ctx)
	case !assignedToSelf && running:
		return tc.Stop(ctx)
	}
	return nil
}

func (tc *TimerController) start(ctx context.Context) error {
	log.Printf("📋 Starting work timer for ticket %s", tc.ticketID)

	entry, started, err := tc.api.AutoStartWorklog(ctx, tc.ticketID)
	if err != nil {
		return fmt.Errorf("failed to start work timer: %w", err)
	}

	tc.mutex.Lock()
	tc.state = TimerRunning
	tc.entry = entry
	tc.mutex.Unlock()

	if started {
		log.Printf("✅ Work timer started, entry %s", entry.ID)
	} else {
		log.Printf("✅ Work timer resumed, entry %s", entry.ID)
	}
	return nil
}

// Stop closes the running timer. A no-op when nothing runs.
func (tc *TimerController) Stop(ctx context.Context) error {
	tc.mutex.Lock()
	if tc.state != TimerRunning {
		tc.mutex.Unlock()
		return nil
	}
	tc.mutex.Unlock()

	log.Printf("📋 Stopping work timer for ticket %s", tc.ticketID)
	if err := tc.api.AutoStopWorklog(ctx, tc.ticketID); err != nil {
		return fmt.Errorf("failed to stop work timer: %w", err)
	}

	tc.mutex.Lock()
	tc.state = TimerStopped
	tc.entry = nil
	tc.mutex.Unlock()

	log.Printf("✅ Work timer stopped for ticket %s", tc.ticketID)
	return nil
}

// HandleUnload is the page-teardown path: fire-and-forget, because an
// unloading page cannot wait for a response. The server tolerates the beacon
// never arriving; a stale open entry is closed by the next start.
func (tc *TimerController) HandleUnload() {
	tc.mutex.Lock()
	running := tc.state == TimerRunning
	tc.state = TimerStopped
	tc.entry = nil
	tc.mutex.Unlock()

	if !running {
		return
	}
	log.Printf("📤 Sending work timer stop beacon for ticket %s", tc.ticketID)
	tc.api.BeaconAutoStopWorklog(tc.ticketID)
}

// CreateManual records a hand-entered closed interval. The interval is
// validated locally before the round-trip so obvious mistakes fail fast.
func (tc *TimerController) CreateManual(
	ctx context.Context,
	startedAt, endedAt time.Time,
	description *string,
) (*models.WorklogEntry, error) {
	if !endedAt.After(startedAt) {
		return nil, fmt.Errorf("manual entry must end after it starts")
	}

	entry, err := tc.api.CreateManualWorklog(ctx, tc.ticketID, startedAt, endedAt, description)
	if err != nil {
		return nil, fmt.Errorf("failed to record manual entry: %w", err)
	}

	log.Printf("✅ Recorded manual worklog entry %s", entry.ID)
	return entry, nil
}
