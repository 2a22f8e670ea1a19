package store

import "replydesk/internal/model"

// MergeCached carries the lazily computed fields (clean body, label,
// confidence, drafted reply) from a previous snapshot into a freshly
// normalized one. A manual collect is an explicit replace-everything action,
// but the scheduled collect must not wipe work the operator already has.
func MergeCached(previous, fresh []model.Campaign) []model.Campaign {
	if len(previous) == 0 {
		return fresh
	}

	cached := make(map[string]model.Prospect)
	for _, c := range previous {
		for _, p := range c.Prospects {
			cached[cacheKey(c.ID, p.ID)] = p
		}
	}

	for ci := range fresh {
		for pi := range fresh[ci].Prospects {
			old, ok := cached[cacheKey(fresh[ci].ID, fresh[ci].Prospects[pi].ID)]
			if !ok {
				continue
			}
			p := &fresh[ci].Prospects[pi]
			if p.CleanBody == "" {
				p.CleanBody = old.CleanBody
			}
			if p.Label == "" {
				p.Label = old.Label
				p.Confidence = old.Confidence
			}
			if p.AIResponse == "" {
				p.AIResponse = old.AIResponse
			}
		}
	}
	return fresh
}

func cacheKey(campaignID, prospectID model.FlexID) string {
	return campaignID.String() + "\x00" + prospectID.String()
}
