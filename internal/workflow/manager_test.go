package workflow

import (
	"context"
	"testing"
	"time"

	"replydesk/internal/config"
	"replydesk/internal/gateway"
	"replydesk/internal/model"
)

func newTestManager(t *testing.T, f *fakeUpstream) *Manager {
	t.Helper()
	st := newTestStore(t)
	seedProspects(t, st)
	cfg := config.Config{
		GeneratorURL:      f.server.URL + "/generate",
		SenderURL:         f.server.URL + "/send_email",
		CRMUpdaterURL:     f.server.URL + "/update_crm",
		ClassifierRootURL: f.server.URL + "/",
		ReplyLanguage:     "fr",
	}
	m := NewManager(gateway.NewClient(cfg, f.server.Client()), st, &testAlerter{}, SenderIdentity{Email: "ops@example.com"})
	m.TickInterval = 10 * time.Millisecond
	return m
}

func managerProspect(id model.FlexID) model.Prospect {
	return model.Prospect{ID: id, Name: "X", Email: "x@y.fr", AIResponse: "cached"}
}

func TestManagerReusesLiveSession(t *testing.T) {
	f := newFakeUpstream(t)
	m := newTestManager(t, f)

	id1, state := m.Open(context.Background(), "c1", managerProspect("p1"))
	if id1 == "" || state.Phase != PhaseReady {
		t.Fatalf("open = %q %s", id1, state.Phase)
	}

	// Switching prospect mid-lifetime keeps the same session.
	id2, _ := m.Open(context.Background(), "c1", managerProspect("p2"))
	if id2 != id1 {
		t.Fatalf("prospect switch created a new session: %q vs %q", id2, id1)
	}

	if _, ok := m.Get(id1); !ok {
		t.Fatal("live session not resolvable by id")
	}
	if _, ok := m.Get("session-999"); ok {
		t.Fatal("unknown id resolved")
	}
}

func TestManagerNewLifetimeAfterClose(t *testing.T) {
	f := newFakeUpstream(t)
	m := newTestManager(t, f)

	id1, _ := m.Open(context.Background(), "c1", managerProspect("p1"))
	if _, ok := m.Close(id1); !ok {
		t.Fatal("close failed")
	}

	id2, _ := m.Open(context.Background(), "c1", managerProspect("p1"))
	if id2 == id1 {
		t.Fatal("open after close must start a fresh lifetime")
	}

	// The prospect is re-openable in the new lifetime even though the old
	// one had already processed it.
	sess, ok := m.Get(id2)
	if !ok || sess.State().Phase != PhaseReady {
		t.Fatalf("new lifetime not live: ok=%v", ok)
	}
}

func TestManagerCloseUnknownID(t *testing.T) {
	f := newFakeUpstream(t)
	m := newTestManager(t, f)
	if _, ok := m.Close("session-1"); ok {
		t.Fatal("closing an unknown session must fail")
	}
}
