package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"replydesk/internal/config"
	"replydesk/internal/gateway"
	"replydesk/internal/notify"
	"replydesk/internal/store"
)

// StartCollectScheduler runs the collect→normalize→save cycle on a 5-field
// cron schedule (minute hour day-of-month month day-of-week) and posts a
// summary to the alert channel. Disabled when no schedule is configured.
func StartCollectScheduler(cfg config.Config, gw *gateway.Client, st *store.Store, notifier *notify.Notifier) {
	schedule := strings.TrimSpace(cfg.CollectSchedule)
	if schedule == "" {
		log.Println("Scheduled collection disabled (collect_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid collect_schedule '%s': %v — scheduled collection disabled", schedule, err)
		return
	}
	log.Printf("Scheduled collection enabled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next collection at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			summary := runScheduledCollect(gw, st)
			log.Printf("Scheduled collection: %s", summary)
			notifier.Alert("Collecte automatique : " + summary)
		}
	}()
}

func runScheduledCollect(gw *gateway.Client, st *store.Store) string {
	payload, err := gw.Collect(context.Background())
	if err != nil {
		return fmt.Sprintf("échec de la collecte : %v", err)
	}

	campaigns := store.MergeCached(st.Load(), store.Normalize(payload))
	if !st.Save(campaigns) {
		return "échec de la sauvegarde des données"
	}

	prospects := 0
	for _, c := range campaigns {
		prospects += len(c.Prospects)
	}
	return fmt.Sprintf("%d campagnes, %d prospects", len(campaigns), prospects)
}
