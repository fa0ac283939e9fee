package localstore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"hdbackend/models"
)

// Profile is the durable local identity of the console client, surviving
// restarts the way a browser profile survives page reloads.
type Profile struct {
	APIToken    string           `json:"api_token"`
	AgentID     string           `json:"agent_id"`
	Slug        string           `json:"slug"`
	DisplayName string           `json:"display_name"`
	Role        models.AgentRole `json:"role"`
}

// Store persists the profile as JSON under the user's config directory,
// guarded by a file lock so two console processes cannot clobber each other.
type Store struct {
	profilePath string
	lockFile    *flock.Flock
}

func NewStore() (*Store, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "hdconsole")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return &Store{
		profilePath: filepath.Join(configDir, "profile.json"),
		lockFile:    flock.New(filepath.Join(configDir, "profile.lock")),
	}, nil
}

// NewStoreAt creates a store rooted at an explicit directory
func NewStoreAt(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{
		profilePath: filepath.Join(dir, "profile.json"),
		lockFile:    flock.New(filepath.Join(dir, "profile.lock")),
	}, nil
}

// Load reads the stored profile. Returns (nil, nil) when none exists yet.
func (s *Store) Load() (*Profile, error) {
	if err := s.lockFile.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire profile lock: %w", err)
	}
	defer s.unlock()

	data, err := os.ReadFile(s.profilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	log.Printf("📋 Loaded local profile for agent %s", profile.AgentID)
	return &profile, nil
}

// Save writes the profile atomically: temp file then rename
func (s *Store) Save(profile *Profile) error {
	if err := s.lockFile.Lock(); err != nil {
		return fmt.Errorf("failed to acquire profile lock: %w", err)
	}
	defer s.unlock()

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	tmpPath := s.profilePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := os.Rename(tmpPath, s.profilePath); err != nil {
		return fmt.Errorf("failed to replace profile: %w", err)
	}

	log.Printf("📋 Saved local profile for agent %s", profile.AgentID)
	return nil
}

// Clear removes the stored profile. Missing file is not an error.
func (s *Store) Clear() error {
	if err := s.lockFile.Lock(); err != nil {
		return fmt.Errorf("failed to acquire profile lock: %w", err)
	}
	defer s.unlock()

	if err := os.Remove(s.profilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	return nil
}

func (s *Store) unlock() {
	if err := s.lockFile.Unlock(); err != nil {
		log.Printf("⚠️ Failed to release profile lock: %v", err)
	}
}
