package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"replydesk/internal/gateway"
	"replydesk/internal/model"
	"replydesk/internal/store"
)

// Manager owns the live review session. The operator UI shows one modal at a
// time, so one session lifetime is live at most; opening after a close
// starts a fresh lifetime, and opening another prospect mid-lifetime is the
// in-modal switch the session handles itself.
type Manager struct {
	gateway *gateway.Client
	store   *store.Store
	alerter Alerter
	sender  SenderIdentity

	CountdownTicks int
	TickInterval   time.Duration

	mu        sync.Mutex
	current   *Session
	currentID string
	seq       int
}

func NewManager(gw *gateway.Client, st *store.Store, alerter Alerter, sender SenderIdentity) *Manager {
	return &Manager{
		gateway:        gw,
		store:          st,
		alerter:        alerter,
		sender:         sender,
		CountdownTicks: 5,
		TickInterval:   time.Second,
	}
}

// Open returns the live session (creating a new lifetime if none is live)
// and enters it for the given prospect.
func (m *Manager) Open(ctx context.Context, campaignID model.FlexID, p model.Prospect) (string, State) {
	m.mu.Lock()
	if m.current == nil || m.current.State().Phase == PhaseClosed {
		m.seq++
		m.currentID = fmt.Sprintf("session-%d", m.seq)
		sess := NewSession(m.gateway, m.store, m.alerter, m.sender)
		sess.CountdownTicks = m.CountdownTicks
		sess.TickInterval = m.TickInterval
		m.current = sess
	}
	sess, id := m.current, m.currentID
	m.mu.Unlock()

	state := sess.Open(ctx, campaignID, p)
	return id, state
}

// Get resolves a session id to the live session.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || id != m.currentID {
		return nil, false
	}
	return m.current, true
}

// Close ends the session lifetime and returns the authoritative prospect.
func (m *Manager) Close(id string) (model.Prospect, bool) {
	sess, ok := m.Get(id)
	if !ok {
		return model.Prospect{}, false
	}
	return sess.Close(), true
}

// Shutdown cancels any running countdown during service teardown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}
