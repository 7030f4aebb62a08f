package session

import (
	"sync"
	"time"
)

// Session is the per-login context: which client, provider and token are
// selected and which authorization flow is in flight. All accessors are safe
// for concurrent use.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time

	mu                 sync.Mutex
	lastSeen           time.Time
	activeClientID     string
	activeProviderName string
	activeTokenID      string
	flow               *FlowState
	lastFlow           *FlowState
}

func (s *Session) ActiveClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeClientID
}

// SetActiveClientID selects a client. Tokens belong to a client, so a
// different client drops the active token.
func (s *Session) SetActiveClientID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeClientID != id {
		s.activeTokenID = ""
	}
	s.activeClientID = id
}

func (s *Session) ActiveProviderName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeProviderName
}

func (s *Session) SetActiveProviderName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeProviderName = name
}

func (s *Session) ActiveTokenID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTokenID
}

func (s *Session) SetActiveTokenID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTokenID = id
}

// ClearActiveToken drops the token selection only if it is still id, so a
// token selected concurrently is left alone. An empty id clears unconditionally.
func (s *Session) ClearActiveToken(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && s.activeTokenID != id {
		return false
	}
	s.activeTokenID = ""
	return true
}

// BeginFlow installs f as the in-flight flow, replacing any previous one
func (s *Session) BeginFlow(f *FlowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow != nil {
		s.lastFlow = s.flow
	}
	s.flow = f
}

// TakeFlow removes and returns the in-flight flow. Its nonce can therefore be
// compared at most once.
func (s *Session) TakeFlow() *FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flow
	s.flow = nil
	return f
}

// FinishFlow records f as the most recent finished flow
func (s *Session) FinishFlow(f *FlowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlow = f
}

// View is a point-in-time copy of the session for rendering
type View struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	ActiveClientID     string     `json:"active_client_id,omitempty"`
	ActiveProviderName string     `json:"active_provider_name,omitempty"`
	ActiveTokenID      string     `json:"active_token_id,omitempty"`
	Flow               *FlowState `json:"flow,omitempty"`
	LastFlow           *FlowState `json:"last_flow,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		ID:                 s.ID,
		Username:           s.Username,
		ActiveClientID:     s.activeClientID,
		ActiveProviderName: s.activeProviderName,
		ActiveTokenID:      s.activeTokenID,
		Flow:               copyFlow(s.flow),
		LastFlow:           copyFlow(s.lastFlow),
	}
}

func copyFlow(f *FlowState) *FlowState {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
