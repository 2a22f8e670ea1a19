package store

import (
	"encoding/json"
	"testing"

	"replydesk/internal/model"
)

func payloadFromJSON(t *testing.T, raw string) model.CollectPayload {
	t.Helper()
	var payload model.CollectPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("parsing payload: %v", err)
	}
	return payload
}

func TestNormalizeEmptyInput(t *testing.T) {
	if got := Normalize(model.CollectPayload{}); len(got) != 0 {
		t.Fatalf("expected empty result, got %d campaigns", len(got))
	}
	if got := Normalize(payloadFromJSON(t, `{}`)); len(got) != 0 {
		t.Fatalf("missing campaigns array should yield empty result, got %d", len(got))
	}
}

func TestNormalizePreservesOrderAndGroups(t *testing.T) {
	payload := payloadFromJSON(t, `{
		"campaigns": [
			{"id": "c1", "name": "Spring", "emailResponses": [
				{"campaignId": "c1", "contactId": "ct-1", "from": {"name": "Alice Martin", "email": "alice@acme.fr"}, "companyName": "Acme", "subject": "Re: offre", "body": "raw", "received_at": "2026-08-01T10:00:00Z"},
				{"campaignId": "c2", "lead_id": "ld-9", "from": {"name": "Bob", "email": "bob@beta.fr"}, "subject": "s", "body": "b"}
			]},
			{"id": "c2", "title": "Summer"},
			{"emailResponses": []}
		]
	}`)

	campaigns := Normalize(payload)
	if len(campaigns) != 3 {
		t.Fatalf("expected 3 campaigns, got %d", len(campaigns))
	}

	// One campaign per input campaign, order preserved.
	if campaigns[0].ID != "c1" || campaigns[1].ID != "c2" {
		t.Fatalf("campaign order/id wrong: %q, %q", campaigns[0].ID, campaigns[1].ID)
	}
	if campaigns[0].Name != "Spring" {
		t.Errorf("name = %q, want Spring", campaigns[0].Name)
	}
	if campaigns[1].Name != "Summer" {
		t.Errorf("title fallback not applied: %q", campaigns[1].Name)
	}

	// Third campaign has no id and no name: positional/templated fallbacks.
	if campaigns[2].ID != "3" {
		t.Errorf("positional id fallback = %q, want 3", campaigns[2].ID)
	}
	if campaigns[2].Name != "Campaign 3" {
		t.Errorf("templated name fallback = %q", campaigns[2].Name)
	}
	if len(campaigns[2].Prospects) != 0 {
		t.Errorf("unmapped campaign should have no prospects, got %d", len(campaigns[2].Prospects))
	}

	// The response declaring campaignId c2 lands in campaign c2 even though
	// it arrived inside c1's flat list.
	if len(campaigns[0].Prospects) != 1 || len(campaigns[1].Prospects) != 1 {
		t.Fatalf("grouping wrong: %d and %d prospects", len(campaigns[0].Prospects), len(campaigns[1].Prospects))
	}
}

func TestNormalizeProspectFields(t *testing.T) {
	payload := payloadFromJSON(t, `{
		"campaigns": [
			{"id": "c1", "name": "Spring", "emailResponses": [
				{"campaignId": "c1", "contactId": "ct-1", "lead_id": "ld-1", "from": {"name": "Alice Martin Dupont", "email": "alice@acme.fr"}, "companyName": "Acme", "subject": "Re: offre", "body": "raw body", "received_at": "2026-08-01T10:00:00Z"},
				{"campaignId": "c1", "lead_id": "ld-2", "from": {"email": "x@y.fr"}, "companyName": "Beta"},
				{"campaignId": "c1", "from": {}}
			]}
		]
	}`)

	prospects := Normalize(payload)[0].Prospects
	if len(prospects) != 3 {
		t.Fatalf("expected 3 prospects, got %d", len(prospects))
	}

	// contactId wins over lead_id.
	if prospects[0].ID != "ct-1" {
		t.Errorf("id precedence: got %q, want ct-1", prospects[0].ID)
	}
	if prospects[0].FirstName != "Alice" || prospects[0].LastName != "Martin Dupont" {
		t.Errorf("name split: %q / %q", prospects[0].FirstName, prospects[0].LastName)
	}
	if prospects[0].Content != "Re: offre" || prospects[0].Body != "raw body" {
		t.Errorf("subject/body mapping wrong: %q / %q", prospects[0].Content, prospects[0].Body)
	}
	if prospects[0].CleanBody != "" {
		t.Errorf("clean_body must start empty, got %q", prospects[0].CleanBody)
	}
	if prospects[0].ContactID != "ct-1" || prospects[0].LeadID != "ld-1" {
		t.Errorf("routing ids not retained: %q / %q", prospects[0].ContactID, prospects[0].LeadID)
	}

	// lead_id fallback, companyName as display name.
	if prospects[1].ID != "ld-2" {
		t.Errorf("lead_id fallback: got %q", prospects[1].ID)
	}
	if prospects[1].Name != "Beta" {
		t.Errorf("companyName fallback: got %q", prospects[1].Name)
	}

	// Positional fallback for both id and name.
	if prospects[2].ID != "c1_3" {
		t.Errorf("positional id fallback: got %q, want c1_3", prospects[2].ID)
	}
	if prospects[2].Name != "Prospect 3" {
		t.Errorf("templated name fallback: got %q", prospects[2].Name)
	}
}

func TestNormalizeNumericCampaignIDs(t *testing.T) {
	payload := payloadFromJSON(t, `{
		"campaigns": [
			{"id": 7, "name": "N", "emailResponses": [
				{"campaignId": 7, "from": {"name": "A B", "email": "a@b.fr"}, "subject": "s", "body": "b"}
			]}
		]
	}`)
	campaigns := Normalize(payload)
	if len(campaigns) != 1 || len(campaigns[0].Prospects) != 1 {
		t.Fatalf("numeric ids not grouped: %+v", campaigns)
	}
	if campaigns[0].Prospects[0].ID != "7_1" {
		t.Errorf("positional id = %q, want 7_1", campaigns[0].Prospects[0].ID)
	}
}
