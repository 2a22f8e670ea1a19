// Package server is the view/route shell: the campaign list, the prospect
// list and the review-session actions, exposed as an HTTP JSON API for the
// operator UI.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"replydesk/internal/crm"
	"replydesk/internal/gateway"
	"replydesk/internal/model"
	"replydesk/internal/reply"
	"replydesk/internal/store"
	"replydesk/internal/workflow"
)

const saveFailedMessage = "Échec de la sauvegarde des données"

type Server struct {
	store    *store.Store
	gateway  *gateway.Client
	enricher *reply.Enricher
	sessions *workflow.Manager
}

func New(st *store.Store, gw *gateway.Client, enricher *reply.Enricher, sessions *workflow.Manager) *Server {
	return &Server{
		store:    st,
		gateway:  gw,
		enricher: enricher,
		sessions: sessions,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/collect", s.handleCollect)
	r.Get("/api/campaigns", s.handleCampaigns)
	r.Get("/api/campaigns/{campaignID}/prospects", s.handleProspects)
	r.Post("/api/campaigns/{campaignID}/prospects/{prospectID}/session", s.handleOpenSession)

	r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", s.handleSessionState)
		r.Post("/edit", s.handleToggleEdit)
		r.Put("/draft", s.handleSetDraft)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/validate", s.handleStartValidation)
		r.Post("/validate/cancel", s.handleCancelValidation)
		r.Post("/crm", s.handleUpdateCRM)
		r.Delete("/", s.handleCloseSession)
	})

	return r
}

// handleCollect fetches raw campaign data, normalizes it into the campaign
// tree and replaces the persisted snapshot.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	payload, err := s.gateway.Collect(r.Context())
	if err != nil {
		log.Printf("collect failed: %v", err)
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	campaigns := store.Normalize(payload)
	if !s.store.Save(campaigns) {
		respondError(w, http.StatusInternalServerError, saveFailedMessage)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Données collectées avec succès !",
		"list":    buildCampaignList(campaigns),
	})
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildCampaignList(s.store.Load()))
}

// handleProspects renders the prospect list for one campaign; an unknown
// campaign redirects back to the campaign list.
func (s *Server) handleProspects(w http.ResponseWriter, r *http.Request) {
	campaignID := model.FlexID(chi.URLParam(r, "campaignID"))
	campaign, ok := s.store.FindCampaign(campaignID)
	if !ok {
		http.Redirect(w, r, "/api/campaigns", http.StatusSeeOther)
		return
	}
	respondJSON(w, http.StatusOK, buildProspectList(campaign))
}

// handleOpenSession runs the clean/classify pre-step when cached values are
// missing, then opens the review session. Enrichment failure still opens the
// session: the operator sees whatever data exists.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	campaignID := model.FlexID(chi.URLParam(r, "campaignID"))
	prospectID := model.FlexID(chi.URLParam(r, "prospectID"))

	prospect, ok := s.store.FindProspect(campaignID, prospectID)
	if !ok {
		respondError(w, http.StatusNotFound, "prospect introuvable")
		return
	}

	enriched, err := s.enricher.EnsureCleanAndLabel(r.Context(), campaignID, prospect)
	if err != nil {
		log.Printf("enrichment failed for prospect %s: %v", prospectID, err)
	}

	id, state := s.sessions.Open(r.Context(), campaignID, enriched)
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId": id,
		"state":     state,
	})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleToggleEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	state, err := sess.ToggleEdit()
	s.respondState(w, state, err)
}

func (s *Server) handleSetDraft(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var body struct {
		Draft string `json:"draft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "corps de requête invalide")
		return
	}
	state, err := sess.SetDraft(body.Draft)
	s.respondState(w, state, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	state, err := sess.Refresh(r.Context())
	s.respondState(w, state, err)
}

func (s *Server) handleStartValidation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	state, err := sess.StartValidation()
	s.respondState(w, state, err)
}

func (s *Server) handleCancelValidation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	state, err := sess.CancelValidation()
	s.respondState(w, state, err)
}

// handleUpdateCRM surfaces validation violations (blocking, all at once),
// server detail on HTTP failure, or the per-entity status summary.
func (s *Server) handleUpdateCRM(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	summary, err := sess.UpdateCRM(r.Context())
	if err != nil {
		var validationErr *crm.ValidationError
		switch {
		case errors.As(err, &validationErr):
			respondError(w, http.StatusUnprocessableEntity, validationErr.Error())
		case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrClosed):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	prospect, ok := s.sessions.Close(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusNotFound, "session introuvable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prospect": prospect})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		respondError(w, http.StatusNotFound, "session introuvable")
		return nil, false
	}
	return sess, true
}

func (s *Server) respondState(w http.ResponseWriter, state workflow.State, err error) {
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, workflow.ErrClosed) {
			status = http.StatusGone
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
