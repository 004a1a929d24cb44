package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Session is the per-conversation source of truth. The dialogue controller
// mutates a loaded copy during one request; only Store.Save makes the
// mutation observable.
type Session struct {
	ID string `json:"session_id"`

	History   []Turn                   `json:"history,omitempty"`
	Prefs     Preferences              `json:"preferences"`
	Favorites map[string]ProductRecord `json:"favorites,omitempty"`
	Confirmed *ProductRecord           `json:"confirmed_product,omitempty"`
	State     DialogueState            `json:"state"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

/* ----------------------------- Dialogue state ---------------------------- */

type DialogueState string

const (
	StateStart            DialogueState = "start"
	StateHearing          DialogueState = "hearing"
	StateSearching        DialogueState = "searching"
	StateImageConfirm     DialogueState = "image_confirmation"
	StateReviewSummary    DialogueState = "review_summary"
	StateFavoritesCompare DialogueState = "favorites_compare"
	StateEnded            DialogueState = "ended"
)

var (
	ErrUnknownState      = errors.New("unknown dialogue state")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// transitions is the closed transition table. Forward arrows plus the
// universal "back to hearing" and "explicit end" edges; StateEnded is
// terminal.
var transitions = map[DialogueState][]DialogueState{
	StateStart:            {StateHearing, StateEnded},
	StateHearing:          {StateHearing, StateSearching, StateImageConfirm, StateEnded},
	StateSearching:        {StateSearching, StateImageConfirm, StateHearing, StateEnded},
	StateImageConfirm:     {StateReviewSummary, StateHearing, StateEnded},
	StateReviewSummary:    {StateFavoritesCompare, StateHearing, StateEnded},
	StateFavoritesCompare: {StateHearing, StateEnded},
	StateEnded:            {},
}

func ParseState(raw string) (DialogueState, error) {
	st := DialogueState(strings.TrimSpace(raw))
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, raw)
	}
	return st, nil
}

func (s DialogueState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// EmitsSuggestions reports whether responses in this state carry a
// suggestion set. Only the terminal state is silent.
func (s DialogueState) EmitsSuggestions() bool {
	return s.Valid() && s != StateEnded
}

func CanTransition(from, to DialogueState) bool {
	if from == to {
		// Staying in place is always permitted for non-terminal states.
		return from.Valid() && from != StateEnded
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

/* ----------------------------- Session helpers --------------------------- */

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		Favorites:    make(map[string]ProductRecord, 4),
		State:        StateStart,
		CreatedAt:    now.UTC(),
		LastActivity: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.LastActivity = now.UTC()
}

// AppendTurn adds a turn to the history. Timestamps are clamped so the
// history stays monotonically non-decreasing even if the clock steps back.
func (s *Session) AppendTurn(role Role, text string, now time.Time) {
	ts := now.UTC()
	if n := len(s.History); n > 0 && ts.Before(s.History[n-1].Timestamp) {
		ts = s.History[n-1].Timestamp
	}
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: ts})
}

// RecentHistory returns the last n turns (the whole history when n <= 0 or
// exceeds its length).
func (s *Session) RecentHistory(n int) []Turn {
	if n <= 0 || n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Transition moves the session to the target state after consulting the
// transition table.
func (s *Session) Transition(to DialogueState) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownState, to)
	}
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	return nil
}

// Reset clears conversational state back to a fresh session. Idempotent.
func (s *Session) Reset(now time.Time) {
	s.History = nil
	s.Prefs = Preferences{}
	s.Favorites = make(map[string]ProductRecord, 4)
	s.Confirmed = nil
	s.State = StateStart
	s.Touch(now)
}

func (s *Session) EnsureFavorites() {
	if s.Favorites == nil {
		s.Favorites = make(map[string]ProductRecord, 4)
	}
}

func favoriteKey(productID, shop string) string {
	return productID + "@" + shop
}

// ToggleFavorite inserts a snapshot of rec keyed by (item, shop), or removes
// the existing entry. Returns true when the record is now favorited.
func (s *Session) ToggleFavorite(rec ProductRecord) bool {
	s.EnsureFavorites()
	key := favoriteKey(rec.ItemID, rec.Shop)
	if _, ok := s.Favorites[key]; ok {
		delete(s.Favorites, key)
		return false
	}
	s.Favorites[key] = rec
	return true
}

func (s *Session) IsFavorite(productID, shop string) bool {
	_, ok := s.Favorites[favoriteKey(productID, shop)]
	return ok
}

// CompareFavorites returns every favorited snapshot of the given product
// across shops, cheapest first. Unknown prices sort last; shop name breaks
// ties so the order is stable.
func (s *Session) CompareFavorites(productID string) []ProductRecord {
	var out []ProductRecord
	for _, rec := range s.Favorites {
		if rec.ItemID == productID {
			out = append(out, rec)
		}
	}
	SortByPriceAscending(out)
	return out
}

// Clone returns a deep copy. Stores hand out clones so in-flight mutation is
// never observable before Save.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.History = append([]Turn(nil), s.History...)
	cp.Prefs = s.Prefs.Clone()
	cp.Favorites = make(map[string]ProductRecord, len(s.Favorites))
	for k, v := range s.Favorites {
		cp.Favorites[k] = v.Clone()
	}
	if s.Confirmed != nil {
		conf := s.Confirmed.Clone()
		cp.Confirmed = &conf
	}
	return &cp
}

func (s *Session) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("session id is empty")
	}
	if !s.State.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownState, s.State)
	}
	for i := 1; i < len(s.History); i++ {
		if s.History[i].Timestamp.Before(s.History[i-1].Timestamp) {
			return fmt.Errorf("history timestamps not monotonic at turn %d", i)
		}
	}
	if err := s.Prefs.Validate(); err != nil {
		return err
	}
	return nil
}
