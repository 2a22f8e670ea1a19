// Package workflow drives the prospect review session: generate a reply
// draft, let the operator edit it, send it after a cancellable countdown, or
// push a classification record to the CRM.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"replydesk/internal/crm"
	"replydesk/internal/gateway"
	"replydesk/internal/model"
	"replydesk/internal/store"
)

// Phase is the session's single tagged state value. The browser original
// scattered this over four booleans; here every transition is guarded
// against the current phase.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseReady      Phase = "ready"
	PhaseEditing    Phase = "editing"
	PhaseValidating Phase = "validating"
	PhaseRefreshing Phase = "refreshing"
	PhaseClosed     Phase = "closed"
)

// Fixed operator-facing placeholders for generation failures. The draft
// field shows these instead of surfacing an error; the session never crashes
// on a bad generator response.
const (
	msgParseError      = "Erreur lors du parsing de la réponse"
	msgInvalidReply    = "Erreur: réponse invalide"
	msgGenerationError = "Erreur lors de la génération de la réponse"
)

var (
	ErrBusy          = fmt.Errorf("action unavailable while generation, refresh or validation is running")
	ErrNotEditing    = fmt.Errorf("draft is locked; unlock editing first")
	ErrClosed        = fmt.Errorf("session is closed")
	ErrNoValidation  = fmt.Errorf("no validation countdown is running")
	ErrAlreadyActive = fmt.Errorf("a validation countdown is already running")
)

// Alerter receives operator alerts for failures the workflow does not
// surface in its own state (fire-and-forget sends, CRM faults).
type Alerter interface {
	Alert(msg string)
}

// SenderIdentity is the fixed operator mailbox used for outbound replies.
type SenderIdentity struct {
	UserID    string
	Email     string
	MailboxID string
}

// Session is one review-modal lifetime. A prospect is processed at most once
// per lifetime (tracked by the last-processed id, reset on close); switching
// prospects or closing cancels any running countdown so a stale timer can
// never fire a send against old data.
type Session struct {
	gateway *gateway.Client
	store   *store.Store
	alerter Alerter
	sender  SenderIdentity
	sendCtx context.Context

	// CountdownTicks and TickInterval default to 5 × 1s; tests shrink the
	// interval to run the countdown at millisecond scale.
	CountdownTicks int
	TickInterval   time.Duration

	mu              sync.Mutex
	phase           Phase
	returnPhase     Phase
	campaignID      model.FlexID
	prospect        model.Prospect
	lastProcessedID model.FlexID
	draft           string
	countdown       int
	cancelCountdown context.CancelFunc
	countdownDone   chan struct{}
}

// State is a read-only snapshot handed to the view layer.
type State struct {
	Phase      Phase          `json:"phase"`
	Draft      string         `json:"draft"`
	Countdown  int            `json:"countdown"`
	CampaignID model.FlexID   `json:"campaignId"`
	Prospect   model.Prospect `json:"prospect"`
}

func NewSession(gw *gateway.Client, st *store.Store, alerter Alerter, sender SenderIdentity) *Session {
	return &Session{
		gateway:        gw,
		store:          st,
		alerter:        alerter,
		sender:         sender,
		sendCtx:        context.Background(),
		phase:          PhaseIdle,
		CountdownTicks: 5,
		TickInterval:   time.Second,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Phase:      s.phase,
		Draft:      s.draft,
		Countdown:  s.countdown,
		CampaignID: s.campaignID,
		Prospect:   s.prospect,
	}
}

// Open enters the session for a prospect. A cached reply short-circuits to
// Ready; otherwise the draft is generated now. Re-opening the prospect that
// was already processed in this lifetime is a no-op.
func (s *Session) Open(ctx context.Context, campaignID model.FlexID, p model.Prospect) State {
	s.mu.Lock()
	if s.phase == PhaseGenerating || s.phase == PhaseRefreshing {
		defer s.mu.Unlock()
		return s.stateLocked()
	}
	if p.ID == s.lastProcessedID {
		defer s.mu.Unlock()
		return s.stateLocked()
	}

	// Mark processed immediately so a racing re-open cannot start a second
	// generation for the same prospect.
	s.lastProcessedID = p.ID
	s.campaignID = campaignID
	s.prospect = p
	s.stopCountdownLocked()
	s.draft = ""

	if p.AIResponse != "" {
		s.draft = p.AIResponse
		s.phase = PhaseReady
		defer s.mu.Unlock()
		return s.stateLocked()
	}
	if p.CleanBody == "" || p.Label == "" {
		// Not enough data to generate; the operator still sees the prospect.
		log.Printf("prospect %s missing clean_body or label, skipping generation", p.ID)
		s.phase = PhaseReady
		defer s.mu.Unlock()
		return s.stateLocked()
	}

	s.phase = PhaseGenerating
	s.mu.Unlock()

	text := s.generate(ctx, campaignID, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseGenerating {
		// Closed (or reset) while generating; the store already holds any
		// persisted result and close re-reads it.
		return s.stateLocked()
	}
	s.draft = text
	s.phase = PhaseReady
	return s.stateLocked()
}

// generate calls the generator and persists a successful draft into the
// store. Failures become fixed placeholder text; the parent view is not
// notified eagerly — it picks the persisted reply up at close.
func (s *Session) generate(ctx context.Context, campaignID model.FlexID, p model.Prospect) string {
	text, err := s.gateway.GenerateReply(ctx, p.Label, p.CleanBody)
	if err != nil {
		log.Printf("reply generation failed for prospect %s: %v", p.ID, err)
		switch {
		case isParseError(err):
			return msgParseError
		case errors.Is(err, gateway.ErrInvalidReply):
			return msgInvalidReply
		default:
			return msgGenerationError
		}
	}

	if !s.store.UpdateProspect(campaignID, p.ID, func(target *model.Prospect) {
		target.AIResponse = text
	}) {
		log.Printf("could not persist generated reply for prospect %s", p.ID)
	}

	s.mu.Lock()
	if s.prospect.ID == p.ID {
		s.prospect.AIResponse = text
	}
	s.mu.Unlock()
	return text
}

func isParseError(err error) bool {
	var parseErr *gateway.ParseError
	return errors.As(err, &parseErr)
}

// ToggleEdit flips the draft lock between Ready and Editing.
func (s *Session) ToggleEdit() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseReady:
		s.phase = PhaseEditing
	case PhaseEditing:
		s.phase = PhaseReady
	case PhaseClosed:
		return s.stateLocked(), ErrClosed
	default:
		return s.stateLocked(), ErrBusy
	}
	return s.stateLocked(), nil
}

// SetDraft replaces the draft text; only allowed while editing is unlocked.
func (s *Session) SetDraft(text string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseClosed {
		return s.stateLocked(), ErrClosed
	}
	if s.phase != PhaseEditing {
		return s.stateLocked(), ErrNotEditing
	}
	s.draft = text
	return s.stateLocked(), nil
}

// Refresh discards the cached reply and regenerates unconditionally,
// bypassing the cache check the open path uses. Independent of the edit
// lock: the prior phase (Ready or Editing) is restored afterwards.
func (s *Session) Refresh(ctx context.Context) (State, error) {
	s.mu.Lock()
	if s.phase != PhaseReady && s.phase != PhaseEditing {
		defer s.mu.Unlock()
		if s.phase == PhaseClosed {
			return s.stateLocked(), ErrClosed
		}
		return s.stateLocked(), ErrBusy
	}
	previous := s.phase
	campaignID := s.campaignID
	p := s.prospect
	s.store.UpdateProspect(campaignID, p.ID, func(target *model.Prospect) {
		target.AIResponse = ""
	})
	s.prospect.AIResponse = ""
	p.AIResponse = ""
	s.draft = ""
	s.phase = PhaseRefreshing
	s.mu.Unlock()

	text := s.generate(ctx, campaignID, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseRefreshing {
		return s.stateLocked(), nil
	}
	s.draft = text
	s.phase = previous
	return s.stateLocked(), nil
}

// StartValidation begins the send countdown. Natural expiry sends the
// then-current draft exactly once; Cancel at any tick discards the pending
// send. Only one countdown may run per session.
func (s *Session) StartValidation() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseReady, PhaseEditing:
	case PhaseValidating:
		return s.stateLocked(), ErrAlreadyActive
	case PhaseClosed:
		return s.stateLocked(), ErrClosed
	default:
		return s.stateLocked(), ErrBusy
	}

	s.returnPhase = s.phase
	s.phase = PhaseValidating
	s.countdown = s.CountdownTicks

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelCountdown = cancel
	done := make(chan struct{})
	s.countdownDone = done
	go s.runCountdown(ctx, done)

	return s.stateLocked(), nil
}

func (s *Session) runCountdown(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			// A tick can already be buffered when cancellation raced the
			// select; a cancelled goroutine must not decrement a countdown
			// that was restarted in the meantime.
			if ctx.Err() != nil || s.phase != PhaseValidating {
				s.mu.Unlock()
				return
			}
			s.countdown--
			if s.countdown > 0 {
				s.mu.Unlock()
				continue
			}
			draft := s.draft
			prospect := s.prospect
			s.phase = s.returnPhase
			s.countdown = 0
			s.cancelCountdown = nil
			s.mu.Unlock()

			s.send(prospect, draft)
			return
		}
	}
}

// CancelValidation aborts a running countdown and discards the pending send.
func (s *Session) CancelValidation() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseValidating {
		return s.stateLocked(), ErrNoValidation
	}
	s.stopCountdownLocked()
	s.phase = s.returnPhase
	return s.stateLocked(), nil
}

func (s *Session) stopCountdownLocked() {
	if s.cancelCountdown != nil {
		s.cancelCountdown()
		s.cancelCountdown = nil
	}
	s.countdown = 0
}

// send is fire-and-forget: a failure is logged and alerted but the session
// state is unaffected and nothing is rolled back.
func (s *Session) send(p model.Prospect, message string) {
	req := gateway.SendRequest{
		SendUserID:        s.sender.UserID,
		SendUserEmail:     s.sender.Email,
		SendUserMailboxID: s.sender.MailboxID,
		ContactID:         p.ContactID,
		LeadID:            p.LeadID,
		Subject:           ReplySubject(p.Content),
		Message:           message,
	}
	if err := s.gateway.SendEmail(s.sendCtx, req); err != nil {
		log.Printf("email send failed for prospect %s: %v", p.ID, err)
		if s.alerter != nil {
			s.alerter.Alert(fmt.Sprintf("Échec de l'envoi de la réponse à %s (%s) : %v", p.Name, p.Email, err))
		}
		return
	}
	log.Printf("reply sent for prospect %s", p.ID)
}

// ReplySubject strips any leading "Re:" from the original subject and
// re-prefixes it, so replies never stack "Re: Re:".
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	for {
		lower := strings.ToLower(trimmed)
		if !strings.HasPrefix(lower, "re:") {
			break
		}
		trimmed = strings.TrimSpace(trimmed[len("re:"):])
	}
	return "Re: " + trimmed
}

// UpdateCRM assembles and validates the CRM payload, then posts it.
// Validation failures block the network call entirely and carry every
// violation at once. On success the per-entity status summary is returned.
func (s *Session) UpdateCRM(ctx context.Context) (string, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseReady, PhaseEditing:
	case PhaseClosed:
		s.mu.Unlock()
		return "", ErrClosed
	default:
		s.mu.Unlock()
		return "", ErrBusy
	}
	p := s.prospect
	draft := s.draft
	s.mu.Unlock()

	classifierType := s.gateway.ClassifierType(ctx)
	payload := crm.BuildPayload(p, draft, ReplySubject(p.Content), classifierType)

	if violations := payload.Validate(); len(violations) > 0 {
		return "", &crm.ValidationError{Violations: violations}
	}

	result, err := s.gateway.UpdateCRM(ctx, payload)
	if err != nil {
		log.Printf("CRM update failed for prospect %s: %v", p.ID, err)
		if s.alerter != nil {
			s.alerter.Alert(fmt.Sprintf("Échec de la mise à jour CRM pour %s : %v", p.Name, err))
		}
		if detail := gateway.ErrorDetail(err); detail != "" {
			return "", fmt.Errorf("mise à jour CRM refusée : %s", detail)
		}
		return "", fmt.Errorf("erreur lors de la mise à jour CRM")
	}
	return crm.FormatUpdateSummary(result), nil
}

// Close tears the session down: cancels any running countdown, re-reads the
// authoritative prospect record from the store (picking up mutations the
// caller's copy never saw) and returns it to the owning view.
func (s *Session) Close() model.Prospect {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCountdownLocked()

	updated := s.prospect
	if fresh, ok := s.store.FindProspect(s.campaignID, s.prospect.ID); ok {
		updated = fresh
	}

	s.phase = PhaseClosed
	s.lastProcessedID = ""
	s.draft = ""
	return updated
}
