// Package crm assembles and validates the classification/summary record
// pushed to the CRM updater. The payload is derived and transient: built at
// send time from a prospect plus a live classifier-type lookup, never stored.
package crm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"replydesk/internal/model"
)

type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type"`
}

type Generation struct {
	Response string `json:"response"`
	Subject  string `json:"subject"`
}

type Payload struct {
	CompanyName    string         `json:"company_name"`
	CompanyAddress string         `json:"company_address"` // collector data carries no address; always sent empty
	PersonEmail    string         `json:"person_email"`
	PersonName     string         `json:"person_name"`
	CleanedEmail   string         `json:"cleaned_email"`
	ReceivedTime   string         `json:"received_time"`
	Classification Classification `json:"classification"`
	Generation     Generation     `json:"generation"`
}

// UpdateResult is the per-entity outcome reported by the CRM updater.
type UpdateResult struct {
	OrganisationStatus string          `json:"organisation_status"`
	PersonStatus       string          `json:"person_status"`
	DealStatus         string          `json:"deal_status"`
	ActivityStatus     string          `json:"activity_status"`
	NoteStatus         string          `json:"note_status"`
	Deal               json.RawMessage `json:"deal,omitempty"`
	Organization       json.RawMessage `json:"organization,omitempty"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError blocks an invalid payload before any network call is made.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "payload CRM invalide : " + strings.Join(e.Violations, " ; ")
}

// BuildPayload assembles the CRM record from a prospect, the current draft
// reply and the probed classifier type, applying the defaulting rules for
// fields the prospect may be missing.
func BuildPayload(p model.Prospect, response, subject, classifierType string) Payload {
	companyName := p.CompanyName
	if companyName == "" {
		companyName = p.Name
	}

	confidence := 0.0
	if p.Confidence != nil {
		confidence = *p.Confidence
	}

	return Payload{
		CompanyName:  companyName,
		PersonEmail:  p.Email,
		PersonName:   strings.TrimSpace(p.Name),
		CleanedEmail: p.CleanBody,
		ReceivedTime: p.ReceivedAt,
		Classification: Classification{
			Label:      p.Label,
			Confidence: confidence,
			Type:       classifierType,
		},
		Generation: Generation{
			Response: response,
			Subject:  subject,
		},
	}
}

// Validate collects every violation instead of stopping at the first, so the
// operator sees the full list at once. An invalid payload must never reach
// the network.
func (p Payload) Validate() []string {
	var violations []string
	if strings.TrimSpace(p.PersonName) == "" {
		violations = append(violations, "nom du prospect manquant")
	}
	if !emailPattern.MatchString(p.PersonEmail) {
		violations = append(violations, fmt.Sprintf("adresse email invalide: %q", p.PersonEmail))
	}
	if strings.TrimSpace(p.Classification.Label) == "" {
		violations = append(violations, "label de classification manquant")
	}
	if p.Classification.Confidence < 0 || p.Classification.Confidence > 1 {
		violations = append(violations, fmt.Sprintf("confiance hors de [0,1]: %g", p.Classification.Confidence))
	}
	return violations
}

// FormatUpdateSummary renders the per-entity statuses for the operator.
func FormatUpdateSummary(r UpdateResult) string {
	return fmt.Sprintf(
		"Mise à jour CRM terminée :\n- organisation : %s\n- personne : %s\n- deal : %s\n- activité : %s\n- note : %s",
		orUnknown(r.OrganisationStatus),
		orUnknown(r.PersonStatus),
		orUnknown(r.DealStatus),
		orUnknown(r.ActivityStatus),
		orUnknown(r.NoteStatus),
	)
}

func orUnknown(status string) string {
	if status == "" {
		return "inconnu"
	}
	return status
}
