package store

import (
	"fmt"
	"strconv"
	"strings"

	"replydesk/internal/model"
)

// Normalize converts the collector's raw payload (campaigns plus a flat
// email-response list keyed by campaign id) into the nested campaign tree
// the rest of the system works with. It never fails: malformed input yields
// an empty collection.
func Normalize(payload model.CollectPayload) []model.Campaign {
	if len(payload.Campaigns) == 0 {
		return []model.Campaign{}
	}

	grouped := groupResponsesByCampaign(payload.Campaigns)

	campaigns := make([]model.Campaign, 0, len(payload.Campaigns))
	for i, raw := range payload.Campaigns {
		id := raw.ID
		if id.IsZero() {
			id = model.FlexID(strconv.Itoa(i + 1))
		}
		name := raw.Name
		if name == "" {
			name = raw.Title
		}
		if name == "" {
			name = fmt.Sprintf("Campaign %d", i+1)
		}

		responses := grouped[raw.ID]
		prospects := make([]model.Prospect, 0, len(responses))
		for ri, resp := range responses {
			prospects = append(prospects, mapResponseToProspect(resp, raw.ID, ri))
		}

		campaigns = append(campaigns, model.Campaign{
			ID:        id,
			Name:      name,
			Prospects: prospects,
		})
	}
	return campaigns
}

func groupResponsesByCampaign(campaigns []model.RawCampaign) map[model.FlexID][]model.RawEmailResponse {
	grouped := make(map[model.FlexID][]model.RawEmailResponse)
	for _, campaign := range campaigns {
		for _, resp := range campaign.EmailResponses {
			grouped[resp.CampaignID] = append(grouped[resp.CampaignID], resp)
		}
	}
	return grouped
}

// Prospect identity precedence: contactId, then lead_id, then a positional
// fallback "{campaignId}_{index+1}".
func mapResponseToProspect(resp model.RawEmailResponse, campaignID model.FlexID, index int) model.Prospect {
	id := resp.ContactID
	if id.IsZero() {
		id = resp.LeadID
	}
	if id.IsZero() {
		id = model.FlexID(fmt.Sprintf("%s_%d", campaignID, index+1))
	}

	firstName, lastName := splitName(resp.From.Name)

	name := resp.From.Name
	if name == "" {
		name = resp.CompanyName
	}
	if name == "" {
		name = fmt.Sprintf("Prospect %d", index+1)
	}

	return model.Prospect{
		ID:          id,
		ContactID:   resp.ContactID,
		LeadID:      resp.LeadID,
		FirstName:   firstName,
		LastName:    lastName,
		Name:        name,
		Email:       resp.From.Email,
		CompanyName: resp.CompanyName,
		Content:     resp.Subject,
		Body:        resp.Body,
		CleanBody:   "",
		ReceivedAt:  resp.ReceivedAt,
	}
}

func splitName(full string) (string, string) {
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return full, ""
}
