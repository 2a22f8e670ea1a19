// Package reply prepares a prospect for review: the raw body is cleaned and
// classified before the review session opens, unless cached values already
// exist.
package reply

import (
	"context"
	"log"

	"replydesk/internal/gateway"
	"replydesk/internal/model"
	"replydesk/internal/store"
)

type Enricher struct {
	Gateway *gateway.Client
	Store   *store.Store
}

// EnsureCleanAndLabel fills the prospect's CleanBody and Label lazily.
// Cached values are never recomputed. Classification failure is non-fatal:
// the operator can still read the cleaned body without a label. The returned
// prospect is re-read from the store so callers see the persisted record.
func (e *Enricher) EnsureCleanAndLabel(ctx context.Context, campaignID model.FlexID, p model.Prospect) (model.Prospect, error) {
	if p.CleanBody != "" {
		if p.Label == "" {
			e.classifyAndPersist(ctx, campaignID, p.ID, p.CleanBody)
		}
		return e.refreshed(campaignID, p), nil
	}

	cleanBody, err := e.Gateway.CleanBody(ctx, p.Body)
	if err != nil {
		return p, err
	}

	classification, classifyErr := e.Gateway.Classify(ctx, cleanBody)
	if classifyErr != nil {
		log.Printf("classification failed for prospect %s: %v", p.ID, classifyErr)
	}

	e.Store.UpdateProspect(campaignID, p.ID, func(target *model.Prospect) {
		target.CleanBody = cleanBody
		if classifyErr == nil {
			target.Label = classification.Label
			confidence := classification.Confidence
			target.Confidence = &confidence
		}
	})
	return e.refreshed(campaignID, p), nil
}

func (e *Enricher) classifyAndPersist(ctx context.Context, campaignID, prospectID model.FlexID, cleanBody string) {
	classification, err := e.Gateway.Classify(ctx, cleanBody)
	if err != nil {
		log.Printf("classification failed for prospect %s: %v", prospectID, err)
		return
	}
	e.Store.UpdateProspect(campaignID, prospectID, func(target *model.Prospect) {
		target.Label = classification.Label
		confidence := classification.Confidence
		target.Confidence = &confidence
	})
}

func (e *Enricher) refreshed(campaignID model.FlexID, fallback model.Prospect) model.Prospect {
	if updated, ok := e.Store.FindProspect(campaignID, fallback.ID); ok {
		return updated
	}
	return fallback
}
