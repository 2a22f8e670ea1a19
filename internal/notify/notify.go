// Package notify posts operator alerts to Slack. The original UI dropped
// send failures silently; here they at least reach the alert channel when
// one is configured. Alerting never blocks or fails the calling flow.
package notify

import (
	"log"

	"github.com/slack-go/slack"

	"replydesk/internal/config"
)

type Notifier struct {
	api       *slack.Client
	channelID string
}

func New(cfg config.Config) *Notifier {
	if !cfg.SlackConfigured() {
		log.Println("Slack alerts disabled (slack_bot_token / alert_channel_id not set)")
		return &Notifier{}
	}
	return &Notifier{
		api:       slack.New(cfg.SlackBotToken),
		channelID: cfg.AlertChannelID,
	}
}

func (n *Notifier) Alert(msg string) {
	if n == nil || n.api == nil {
		return
	}
	_, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(msg, false))
	if err != nil {
		log.Printf("Error posting alert to %s: %v", n.channelID, err)
	}
}
