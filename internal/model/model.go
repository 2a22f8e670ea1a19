package model

import (
	"encoding/json"
	"fmt"
)

// FlexID is an identifier that upstream services serialize as either a JSON
// string or a JSON number. It always re-serializes as a string so that a
// saved snapshot round-trips byte for byte.
type FlexID string

func (id FlexID) String() string { return string(id) }

func (id FlexID) IsZero() bool { return id == "" }

func (id *FlexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = FlexID(n.String())
		return nil
	}
	return fmt.Errorf("id is neither string nor number: %s", data)
}

func (id FlexID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// Campaign is a named outreach effort containing the prospects who replied.
type Campaign struct {
	ID        FlexID     `json:"id"`
	Name      string     `json:"name"`
	Prospects []Prospect `json:"prospects"`
}

// Prospect is a contact who replied to an outreach email. CleanBody, Label,
// Confidence and AIResponse are filled in lazily and treated as cached once
// set; only an explicit refresh recomputes them.
type Prospect struct {
	ID          FlexID   `json:"id"`
	ContactID   FlexID   `json:"contactId,omitempty"`
	LeadID      FlexID   `json:"lead_id,omitempty"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	CompanyName string   `json:"companyName"`
	Content     string   `json:"content"` // original subject line
	Body        string   `json:"body"`
	CleanBody   string   `json:"clean_body"`
	ReceivedAt  string   `json:"receivedAt"`
	Label       string   `json:"label,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	AIResponse  string   `json:"ai_response,omitempty"`
}

// Collector wire format: campaigns carrying a flat list of email responses
// keyed back to their campaign by campaignId.

type CollectPayload struct {
	Campaigns []RawCampaign `json:"campaigns"`
}

type RawCampaign struct {
	ID             FlexID             `json:"id"`
	Name           string             `json:"name"`
	Title          string             `json:"title"`
	EmailResponses []RawEmailResponse `json:"emailResponses"`
}

type RawEmailResponse struct {
	CampaignID  FlexID    `json:"campaignId"`
	ContactID   FlexID    `json:"contactId"`
	LeadID      FlexID    `json:"lead_id"`
	From        RawSender `json:"from"`
	CompanyName string    `json:"companyName"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	ReceivedAt  string    `json:"received_at"`
}

type RawSender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}
