package store

import (
	"database/sql"
	"encoding/json"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"replydesk/internal/model"
)

// snapshotKey is the single fixed key under which the whole campaign
// collection is persisted, like the browser build kept one localStorage entry.
const snapshotKey = "campaigns_data"

const casMaxRetries = 5

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS campaign_snapshots (
		key        TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		version    INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Store holds the campaign collection as one serialized snapshot. It is the
// single source of truth for the whole session: every screen loads fresh and
// every mutation is a read-modify-write of the entire collection. Load, Save
// and Clear never fail loudly; they degrade to empty/false so a storage
// fault costs data, not availability.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Load() []model.Campaign {
	campaigns, _, ok := s.loadVersioned()
	if !ok {
		return []model.Campaign{}
	}
	return campaigns
}

func (s *Store) loadVersioned() ([]model.Campaign, int64, bool) {
	var data string
	var version int64
	err := s.db.QueryRow(
		`SELECT data, version FROM campaign_snapshots WHERE key = ?`, snapshotKey,
	).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return []model.Campaign{}, 0, false
	}
	if err != nil {
		log.Printf("store load error: %v", err)
		return []model.Campaign{}, 0, false
	}

	var campaigns []model.Campaign
	if err := json.Unmarshal([]byte(data), &campaigns); err != nil {
		log.Printf("store corrupt snapshot discarded: %v", err)
		return []model.Campaign{}, 0, false
	}
	if campaigns == nil {
		campaigns = []model.Campaign{}
	}
	return campaigns, version, true
}

// Save replaces the whole snapshot unconditionally and bumps the version.
// Collect is an explicit "replace everything" action, so no CAS here.
func (s *Store) Save(campaigns []model.Campaign) bool {
	data, err := json.Marshal(campaigns)
	if err != nil {
		log.Printf("store save marshal error: %v", err)
		return false
	}
	_, err = s.db.Exec(
		`INSERT INTO campaign_snapshots (key, data, version) VALUES (?, ?, 1)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, version = campaign_snapshots.version + 1,
		 updated_at = CURRENT_TIMESTAMP`,
		snapshotKey, string(data),
	)
	if err != nil {
		log.Printf("store save error: %v", err)
		return false
	}
	return true
}

func (s *Store) Clear() bool {
	_, err := s.db.Exec(`DELETE FROM campaign_snapshots WHERE key = ?`, snapshotKey)
	if err != nil {
		log.Printf("store clear error: %v", err)
		return false
	}
	return true
}

// FindCampaign returns the campaign with the given id from a fresh load.
func (s *Store) FindCampaign(campaignID model.FlexID) (model.Campaign, bool) {
	for _, c := range s.Load() {
		if c.ID == campaignID {
			return c, true
		}
	}
	return model.Campaign{}, false
}

// FindProspect returns the authoritative prospect record from a fresh load.
func (s *Store) FindProspect(campaignID, prospectID model.FlexID) (model.Prospect, bool) {
	campaign, ok := s.FindCampaign(campaignID)
	if !ok {
		return model.Prospect{}, false
	}
	for _, p := range campaign.Prospects {
		if p.ID == prospectID {
			return p, true
		}
	}
	return model.Prospect{}, false
}

// UpdateProspect applies mutate to one prospect under a versioned
// compare-and-swap, retrying on conflict. Two in-flight writers can no
// longer silently clobber each other's fields at whole-collection
// granularity. Returns false when the prospect does not exist or the
// snapshot cannot be written.
func (s *Store) UpdateProspect(campaignID, prospectID model.FlexID, mutate func(*model.Prospect)) bool {
	for attempt := 0; attempt < casMaxRetries; attempt++ {
		campaigns, version, ok := s.loadVersioned()
		if !ok {
			return false
		}

		found := false
		for ci := range campaigns {
			if campaigns[ci].ID != campaignID {
				continue
			}
			for pi := range campaigns[ci].Prospects {
				if campaigns[ci].Prospects[pi].ID == prospectID {
					mutate(&campaigns[ci].Prospects[pi])
					found = true
					break
				}
			}
			break
		}
		if !found {
			return false
		}

		data, err := json.Marshal(campaigns)
		if err != nil {
			log.Printf("store update marshal error: %v", err)
			return false
		}
		res, err := s.db.Exec(
			`UPDATE campaign_snapshots SET data = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			 WHERE key = ? AND version = ?`,
			string(data), snapshotKey, version,
		)
		if err != nil {
			log.Printf("store update error: %v", err)
			return false
		}
		affected, err := res.RowsAffected()
		if err != nil {
			log.Printf("store update error: %v", err)
			return false
		}
		if affected == 1 {
			return true
		}
		// Version moved under us; reload and retry.
	}
	log.Printf("store update gave up after %d version conflicts", casMaxRetries)
	return false
}
