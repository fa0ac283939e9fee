package mentions

import (
	"strings"

	"hdbackend/models"
)

// Resolve matches a mention query fragment against the roster,
// case-insensitively, on display name or email substring. Order is roster
// order; there is no relevance ranking. An empty fragment matches everyone.
func Resolve(roster []models.MentionCandidate, fragment string) []models.MentionCandidate {
	query := strings.ToLower(fragment)
	matched := make([]models.MentionCandidate, 0, len(roster))
	for _, candidate := range roster {
		if strings.Contains(strings.ToLower(candidate.DisplayName), query) {
			matched = append(matched, candidate)
			continue
		}
		if candidate.Email != nil && strings.Contains(strings.ToLower(*candidate.Email), query) {
			matched = append(matched, candidate)
		}
	}
	return matched
}

// IsFragmentRune reports whether a rune may appear in a mention fragment.
// Any other character after the @ closes the suggestion list.
func IsFragmentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	}
	return false
}

// ExtractFragment recomputes the trigger fragment from the last '@' before
// the cursor. Returns the fragment, the rune index of the '@', and whether a
// valid fragment is present (every rune between '@' and the cursor must be a
// fragment rune).
func ExtractFragment(text string, cursor int) (string, int, bool) {
	runes := []rune(text)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(runes) {
		cursor = len(runes)
	}

	at := -1
	for i := cursor - 1; i >= 0; i-- {
		if runes[i] == '@' {
			at = i
			break
		}
	}
	if at == -1 {
		return "", -1, false
	}

	for i := at + 1; i < cursor; i++ {
		if !IsFragmentRune(runes[i]) {
			return "", -1, false
		}
	}

	return string(runes[at+1 : cursor]), at, true
}

// CandidatesFromRoster projects roster agents into mention candidates,
// preserving roster order.
func CandidatesFromRoster(agents []*models.Agent) []models.MentionCandidate {
	candidates := make([]models.MentionCandidate, 0, len(agents))
	for _, agent := range agents {
		candidates = append(candidates, models.MentionCandidate{
			ID:          agent.ID,
			DisplayName: agent.DisplayName,
			Email:       agent.Email,
			Type:        agent.Role,
			AvatarURL:   agent.AvatarURL,
		})
	}
	return candidates
}
