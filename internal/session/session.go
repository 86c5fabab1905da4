// Package session keeps the per-browser state of the invoice form.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/merchantsons/invoicegen/internal/invoice"
)

// AddItem returns items with item appended. It never removes or reorders
// existing entries and does not modify the backing array of the argument.
func AddItem(items []invoice.LineItem, item invoice.LineItem) []invoice.LineItem {
	out := make([]invoice.LineItem, len(items), len(items)+1)
	copy(out, items)
	return append(out, item)
}

// Draft holds the free-text form fields as last submitted
type Draft struct {
	CompanyName     string
	CustomerName    string
	Address         string
	InvoiceNumber   string
	Date            string
	TextColor       string
	HeaderColor     string
	BackgroundColor string
}

// Flash kinds
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next page view
type Flash struct {
	Kind string
	Text string
}

// State is what one browser has entered so far
type State struct {
	Draft Draft
	Items []invoice.LineItem
	// Logo is the processed PNG, nil when none was uploaded.
	Logo []byte
}

// Session is one browser's state guarded by its own lock
type Session struct {
	ID string

	mu        sync.Mutex
	state     State
	flashes   []Flash
	expiresAt time.Time
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Draft: s.state.Draft,
		Items: append([]invoice.LineItem(nil), s.state.Items...),
		Logo:  s.state.Logo,
	}
}

// SetDraft stores the latest form fields
func (s *Session) SetDraft(d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Draft = d
}

// AddFlash queues a message for the next page view
func (s *Session) AddFlash(kind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, Flash{Kind: kind, Text: text})
}

// TakeFlashes returns the queued messages and clears the queue
func (s *Session) TakeFlashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

// AddItem appends one line item
func (s *Session) AddItem(item invoice.LineItem) []invoice.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Items = AddItem(s.state.Items, item)
	return append([]invoice.LineItem(nil), s.state.Items...)
}

// ClearItems starts a new item list
func (s *Session) ClearItems() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Items = nil
}

// SetLogo replaces the processed logo; nil removes it
func (s *Session) SetLogo(png []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Logo = png
}

// Store holds sessions in memory with a sliding TTL
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewStore creates a store whose sessions expire after ttl of inactivity
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get returns the live session for id, creating a fresh one when id is
// unknown or expired. The returned bool is true when a new session was made.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.pruneLocked(now)

	if s, ok := st.sessions[id]; ok {
		s.expiresAt = now.Add(st.ttl)
		return s, false
	}

	s := &Session{ID: uuid.NewString(), expiresAt: now.Add(st.ttl)}
	st.sessions[s.ID] = s
	return s, true
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.pruneLocked(st.now())
	return len(st.sessions)
}

func (st *Store) pruneLocked(now time.Time) {
	if st.ttl <= 0 {
		return
	}
	for id, s := range st.sessions {
		if now.After(s.expiresAt) {
			delete(st.sessions, id)
		}
	}
}
