package server

import (
	"fmt"

	"replydesk/internal/model"
)

const emptyStateMessage = `Aucune donnée disponible. Cliquez sur "Collecter données" pour récupérer les campagnes.`

// ListItem is one rendered row: a name plus the action that opens it. For
// the campaigns variant the action is a navigable link; for the prospects
// variant it is the session-open endpoint.
type ListItem struct {
	ID   model.FlexID `json:"id"`
	Name string       `json:"name"`
	Open string       `json:"open"`
}

type ListView struct {
	Title        string     `json:"title"`
	Variant      string     `json:"variant"`
	Items        []ListItem `json:"items"`
	EmptyMessage string     `json:"emptyMessage,omitempty"`
}

func buildCampaignList(campaigns []model.Campaign) ListView {
	view := ListView{
		Title:   "Campagnes",
		Variant: "campaigns",
		Items:   []ListItem{},
	}
	for _, c := range campaigns {
		view.Items = append(view.Items, ListItem{
			ID:   c.ID,
			Name: c.Name,
			Open: fmt.Sprintf("/api/campaigns/%s/prospects", c.ID),
		})
	}
	if len(view.Items) == 0 {
		view.EmptyMessage = emptyStateMessage
	}
	return view
}

func buildProspectList(campaign model.Campaign) ListView {
	view := ListView{
		Title:   fmt.Sprintf("Prospects - %s", campaign.Name),
		Variant: "prospects",
		Items:   []ListItem{},
	}
	for _, p := range campaign.Prospects {
		view.Items = append(view.Items, ListItem{
			ID:   p.ID,
			Name: p.Name,
			Open: fmt.Sprintf("/api/campaigns/%s/prospects/%s/session", campaign.ID, p.ID),
		})
	}
	if len(view.Items) == 0 {
		view.EmptyMessage = emptyStateMessage
	}
	return view
}
