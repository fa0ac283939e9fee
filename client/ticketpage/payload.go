package ticketpage

import (
	"encoding/json"
	"fmt"
)

// decodePayload converts a transport-decoded payload (generic maps) or an
// already-typed struct into the target type via a JSON round-trip.
func decodePayload(payload any, target any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}
