package ticketpage

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"hdbackend/client/conn"
	"hdbackend/models"
)

const (
	ackTimeout       = 5 * time.Second
	maxAnnounceTries = 5
)

// Realtime is the slice of the connection manager the page depends on
type Realtime interface {
	On(event string, handler conn.EventHandlerFunc)
	OnStateChange(listener conn.StateListenerFunc)
	SetAnnouncement(key, event string, payload any)
	ClearAnnouncement(key string)
	Emit(event string, payload any) error
	EmitWithAck(event string, payload any, timeout time.Duration) (any, error)
	State() conn.State
}

// ViewerPanel mirrors the server's viewer set for one open ticket. The local
// user shows up immediately (optimistically) and is never removed by inbound
// deltas; everyone else is reconciled from the announce acknowledgement and
// updated by joined/left events.
type ViewerPanel struct {
	realtime Realtime
	ticketID string
	self     models.ViewerEntry

	mutex   sync.Mutex
	others  map[string]models.ViewerEntry
	opened  bool
	onError func(error)
}

func NewViewerPanel(realtime Realtime, ticketID string, self models.ViewerEntry) *ViewerPanel {
	panel := &ViewerPanel{
		realtime: realtime,
		ticketID: ticketID,
		self:     self,
		others:   make(map[string]models.ViewerEntry),
	}

	realtime.On(models.EventViewerJoined, panel.handleViewerJoined)
	realtime.On(models.EventViewerLeft, panel.handleViewerLeft)
	realtime.OnStateChange(func(state conn.State) {
		if state == conn.StateConnected {
			panel.mutex.Lock()
			opened := panel.opened
			panel.mutex.Unlock()
			if opened {
				go panel.announce()
			}
		}
	})

	return panel
}

func (p *ViewerPanel) announcementKey() string {
	return "view:" + p.ticketID
}

func (p *ViewerPanel) viewPayload() models.TicketViewPayload {
	return models.TicketViewPayload{
		TicketID:   p.ticketID,
		UserID:     p.self.UserID,
		UserName:   p.self.DisplayName,
		UserAvatar: p.self.AvatarURL,
		UserType:   p.self.UserType,
	}
}

// Open announces the local user as a viewer. The sticky announcement keeps
// the registration alive across reconnects even if the ack'd announce below
// is still in flight; announcing twice is harmless because registration is
// idempotent server-side.
func (p *ViewerPanel) Open() {
	log.Printf("📋 Opening viewer panel for ticket %s", p.ticketID)

	p.mutex.Lock()
	p.opened = true
	p.mutex.Unlock()

	p.realtime.SetAnnouncement(p.announcementKey(), models.EventTicketView, p.viewPayload())
	if p.realtime.State() == conn.StateConnected {
		go p.announce()
	}
}

// Close withdraws the registration. Safe to call when never opened.
func (p *ViewerPanel) Close() {
	log.Printf("📋 Closing viewer panel for ticket %s", p.ticketID)

	p.mutex.Lock()
	p.opened = false
	p.others = make(map[string]models.ViewerEntry)
	p.mutex.Unlock()

	p.realtime.ClearAnnouncement(p.announcementKey())
	if err := p.realtime.Emit(models.EventTicketLeave, models.TicketLeavePayload{TicketID: p.ticketID}); err != nil {
		log.Printf("⚠️ Failed to emit ticket leave: %v", err)
	}
}

// Viewers returns the current local view of the viewer set, self first, the
// rest ordered by join time.
func (p *ViewerPanel) Viewers() []models.ViewerEntry {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	viewers := make([]models.ViewerEntry, 0, len(p.others)+1)
	viewers = append(viewers, p.self)
	for _, entry := range p.others {
		viewers = append(viewers, entry)
	}
	rest := viewers[1:]
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].JoinedAt.Equal(rest[j].JoinedAt) {
			return rest[i].UserID < rest[j].UserID
		}
		return rest[i].JoinedAt.Before(rest[j].JoinedAt)
	})
	return viewers
}

// announce registers with the server and reconciles the local set from the
// acknowledgement. Bounded retries; when every attempt times out the panel
// keeps showing just the local user rather than going blank.
func (p *ViewerPanel) announce() {
	var lastErr error
	for attempt := 1; attempt <= maxAnnounceTries; attempt++ {
		ack, err := p.realtime.EmitWithAck(models.EventTicketView, p.viewPayload(), ackTimeout)
		if err == nil {
			p.reconcile(ack)
			return
		}
		lastErr = err
		log.Printf("⚠️ Viewer announce attempt %d/%d failed: %v", attempt, maxAnnounceTries, err)

		p.mutex.Lock()
		opened := p.opened
		p.mutex.Unlock()
		if !opened || p.realtime.State() != conn.StateConnected {
			return
		}
	}

	log.Printf("❌ Viewer announce gave up after %d attempts: %v", maxAnnounceTries, lastErr)
	p.reportError(fmt.Errorf("failed to announce viewer on ticket %s: %w", p.ticketID, lastErr))
}

// reconcile replaces the non-self entries from an acknowledgement payload
func (p *ViewerPanel) reconcile(ack any) {
	var ackPayload models.TicketViewAck
	if err := decodePayload(ack, &ackPayload); err != nil {
		log.Printf("❌ Failed to decode view acknowledgement: %v", err)
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.others = make(map[string]models.ViewerEntry)
	for _, entry := range ackPayload.Viewers {
		if entry.UserID == p.self.UserID {
			continue
		}
		p.others[entry.UserID] = entry
	}
	log.Printf("📋 Reconciled viewer set for ticket %s: %d others", p.ticketID, len(p.others))
}

func (p *ViewerPanel) handleViewerJoined(payload any) {
	var joined models.ViewerJoinedPayload
	if err := decodePayload(payload, &joined); err != nil {
		log.Printf("❌ Failed to decode viewer joined event: %v", err)
		return
	}
	if joined.TicketID != p.ticketID || joined.Viewer.UserID == p.self.UserID {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.others[joined.Viewer.UserID] = joined.Viewer
}

func (p *ViewerPanel) handleViewerLeft(payload any) {
	var left models.ViewerLeftPayload
	if err := decodePayload(payload, &left); err != nil {
		log.Printf("❌ Failed to decode viewer left event: %v", err)
		return
	}
	// Self never disappears from its own panel
	if left.TicketID != p.ticketID || left.UserID == p.self.UserID {
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.others, left.UserID)
}

// OnError registers a callback for announce failures surfaced to the page
func (p *ViewerPanel) OnError(fn func(error)) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.onError = fn
}

func (p *ViewerPanel) reportError(err error) {
	p.mutex.Lock()
	fn := p.onError
	p.mutex.Unlock()
	if fn != nil {
		fn(err)
	}
}
