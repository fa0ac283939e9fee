package composer

import (
	"hdbackend/models"
	"hdbackend/services/mentions"
)

// Key is a keyboard input the suggestion list reacts to
type Key string

const (
	KeyUp     Key = "up"
	KeyDown   Key = "down"
	KeyEnter  Key = "enter"
	KeyTab    Key = "tab"
	KeyEscape Key = "escape"
)

// Composer is the mention-aware message input state machine. It owns the
// draft text, the cursor, and the suggestion list triggered by '@'. Pure
// state: rendering and transport belong to the caller.
type Composer struct {
	roster []models.MentionCandidate

	text      string
	cursor    int
	active    bool
	dismissed bool
	atIndex   int

	suggestions []models.MentionCandidate
	selected    int
}

func NewComposer(roster []models.MentionCandidate) *Composer {
	return &Composer{roster: roster}
}

// SetRoster replaces the candidate roster, e.g. after a directory refetch
func (c *Composer) SetRoster(roster []models.MentionCandidate) {
	c.roster = roster
	c.recompute()
}

func (c *Composer) Text() string  { return c.text }
func (c *Composer) Cursor() int   { return c.cursor }
func (c *Composer) Active() bool  { return c.active }
func (c *Composer) Selected() int { return c.selected }

// Suggestions returns the current candidate list, empty when inactive
func (c *Composer) Suggestions() []models.MentionCandidate {
	if !c.active {
		return nil
	}
	return c.suggestions
}

// SetText updates the draft and cursor, recomputing the suggestion state
// from scratch. An edit after an escape-dismissal reopens the list.
func (c *Composer) SetText(text string, cursor int) {
	if text != c.text {
		c.dismissed = false
	}
	c.text = text
	c.cursor = clamp(cursor, 0, len([]rune(text)))
	c.recompute()
}

// HandleKey processes a keystroke. Returns true when the key was consumed by
// the suggestion list and must not reach the underlying text input.
func (c *Composer) HandleKey(key Key) bool {
	if !c.active {
		return false
	}

	switch key {
	case KeyUp:
		c.selected = clamp(c.selected-1, 0, len(c.suggestions)-1)
		return true
	case KeyDown:
		c.selected = clamp(c.selected+1, 0, len(c.suggestions)-1)
		return true
	case KeyEnter, KeyTab:
		c.commit()
		return true
	case KeyEscape:
		c.active = false
		c.dismissed = true
		return true
	}
	return false
}

// commit replaces the @fragment with the selected candidate's display name
// and moves the cursor past the inserted mention.
func (c *Composer) commit() {
	if c.selected < 0 || c.selected >= len(c.suggestions) {
		return
	}
	candidate := c.suggestions[c.selected]

	runes := []rune(c.text)
	mention := "@" + candidate.DisplayName + " "
	before := string(runes[:c.atIndex])
	after := string(runes[c.cursor:])

	c.text = before + mention + after
	c.cursor = len([]rune(before + mention))
	c.active = false
	c.dismissed = false
	c.recompute()
}

func (c *Composer) recompute() {
	fragment, atIndex, ok := mentions.ExtractFragment(c.text, c.cursor)
	if !ok || c.dismissed {
		c.active = false
		c.suggestions = nil
		c.selected = 0
		return
	}

	matched := mentions.Resolve(c.roster, fragment)
	if len(matched) == 0 {
		c.active = false
		c.suggestions = nil
		c.selected = 0
		return
	}

	c.atIndex = atIndex
	c.suggestions = matched
	c.active = true
	c.selected = clamp(c.selected, 0, len(matched)-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
