package ticketpage

import (
	"context"
	"log"

	"hdbackend/models"
)

// TicketPage is the client-side runtime for one open ticket screen: the
// viewer panel plus the work timer, with a shared lifecycle.
type TicketPage struct {
	TicketID string
	Viewers  *ViewerPanel
	Timer    *TimerController
}

func NewTicketPage(
	realtime Realtime,
	api WorklogAPI,
	ticketID string,
	self models.ViewerEntry,
) *TicketPage {
	return &TicketPage{
		TicketID: ticketID,
		Viewers:  NewViewerPanel(realtime, ticketID, self),
		Timer:    NewTimerController(api, ticketID, self.UserID),
	}
}

// Open announces the viewer registration. The timer starts separately, when
// an assignee change says the ticket belongs to the local agent.
func (p *TicketPage) Open() {
	log.Printf("📋 Opening ticket page %s", p.TicketID)
	p.Viewers.Open()
}

// Close is the orderly teardown: leave the viewer set, stop the timer
func (p *TicketPage) Close(ctx context.Context) {
	log.Printf("📋 Closing ticket page %s", p.TicketID)
	p.Viewers.Close()
	if err := p.Timer.Stop(ctx); err != nil {
		log.Printf("⚠️ Failed to stop timer while closing page: %v", err)
	}
}

// HandleUnload is the abrupt teardown: the page is going away and can only
// fire beacons. Viewer cleanup is left to the server's disconnect handling.
func (p *TicketPage) HandleUnload() {
	log.Printf("📤 Ticket page %s unloading", p.TicketID)
	p.Timer.HandleUnload()
}
