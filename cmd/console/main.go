package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"hdbackend/client/api"
	"hdbackend/client/conn"
	"hdbackend/client/localstore"
	"hdbackend/client/presence"
	"hdbackend/client/ticketpage"
	"hdbackend/models"
)

type Options struct {
	ServerURL string `long:"server" description:"Collaboration backend base URL" default:"http://localhost:8080"`
	TicketID  string `long:"ticket" description:"Ticket to open" required:"true"`
	Token     string `long:"token" description:"API token (stored in the local profile for next time)"`
	Assigned  bool   `long:"assigned" description:"Treat the ticket as assigned to this agent, starting the work timer"`
	Status    string `long:"status" description:"Explicit presence status to set on startup (online, away, busy, in_meeting, dnd, on_leave)"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	store, err := localstore.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open local profile store: %w", err)
	}

	profile, err := resolveProfile(store, opts)
	if err != nil {
		return err
	}
	log.Printf("🆔 Running as %s (%s)", profile.DisplayName, profile.AgentID)

	apiClient := api.NewClient(opts.ServerURL, profile.APIToken)
	realtime := conn.NewManager(opts.ServerURL, profile.APIToken)

	mirror := presence.NewMirror()
	mirror.OnChange(func(record models.PresenceRecord) {
		label := record.AgentSlug
		if label == "" {
			label = record.AgentID
		}
		log.Printf("👥 %s is now %s", label, record.Status)
	})
	realtime.On(models.EventPresenceUpdate, func(payload any) {
		if err := mirror.ApplyEvent(payload); err != nil {
			log.Printf("⚠️ Dropped malformed presence update: %v", err)
		}
	})
	realtime.OnStateChange(func(state conn.State) {
		switch state {
		case conn.StateConnected:
			// Deltas broadcast while disconnected are gone; refetch the
			// snapshot to close the gap
			go seedPresence(apiClient, mirror)
		case conn.StateFailed:
			log.Printf("💀 Connection permanently lost; restart to reconnect")
		}
	})

	self := models.ViewerEntry{
		UserID:      profile.AgentID,
		DisplayName: profile.DisplayName,
		UserType:    profile.Role,
	}
	page := ticketpage.NewTicketPage(realtime, apiClient, opts.TicketID, self)
	page.Viewers.OnError(func(err error) {
		log.Printf("⚠️ Viewer registration degraded: %v", err)
	})

	if err := realtime.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	page.Open()
	printTicketActivity(apiClient, opts.TicketID)

	if opts.Status != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		record, err := apiClient.SetPresence(ctx, profile.AgentID, models.PresenceStatus(opts.Status))
		cancel()
		if err != nil {
			log.Printf("⚠️ Failed to set presence status: %v", err)
		} else {
			log.Printf("✅ Presence set to %s", record.Status)
		}
	}

	if opts.Assigned {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := page.Timer.HandleAssigneeChange(ctx, &profile.AgentID)
		cancel()
		if err != nil {
			log.Printf("⚠️ Failed to start work timer: %v", err)
		}
	}

	// Wait for interrupt, then tear down the way a closing page would
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("🛑 Shutting down...")
	page.HandleUnload()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	page.Close(ctx)
	realtime.Disconnect()

	log.Printf("✅ Console stopped")
	return nil
}

// seedPresence loads the authoritative presence snapshot into the mirror
func seedPresence(apiClient *api.Client, mirror *presence.Mirror) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := apiClient.FetchPresence(ctx)
	if err != nil {
		log.Printf("⚠️ Failed to fetch presence snapshot: %v", err)
		return
	}
	mirror.Seed(records)
	log.Printf("👥 Presence snapshot loaded for %d agents", len(records))
}

// printTicketActivity shows who else is on the ticket and how much time has
// already been logged against it.
func printTicketActivity(apiClient *api.Client, ticketID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	viewers, err := apiClient.FetchViewers(ctx, ticketID)
	if err != nil {
		log.Printf("⚠️ Failed to fetch viewers for ticket %s: %v", ticketID, err)
	} else {
		log.Printf("👀 %d viewer(s) currently on ticket %s", len(viewers), ticketID)
	}

	entries, err := apiClient.ListTicketWorklogs(ctx, ticketID)
	if err != nil {
		log.Printf("⚠️ Failed to list worklogs for ticket %s: %v", ticketID, err)
		return
	}
	var totalSeconds int64
	for _, entry := range entries {
		totalSeconds += entry.DurationSeconds()
	}
	log.Printf(
		"⏱️ Ticket %s has %d worklog entries, %s logged",
		ticketID,
		len(entries),
		time.Duration(totalSeconds)*time.Second,
	)
}

// resolveProfile loads the durable local identity, refreshing it from the
// server when a token is supplied on the command line.
func resolveProfile(store *localstore.Store, opts Options) (*localstore.Profile, error) {
	profile, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if opts.Token == "" {
		if profile == nil {
			return nil, fmt.Errorf("no stored profile; pass --token on first run")
		}
		return profile, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agent, err := api.NewClient(opts.ServerURL, opts.Token).WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	profile = &localstore.Profile{
		APIToken:    opts.Token,
		AgentID:     agent.ID,
		Slug:        agent.Slug,
		DisplayName: agent.DisplayName,
		Role:        agent.Role,
	}
	if err := store.Save(profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}
