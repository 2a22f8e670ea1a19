package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`

	CollectorURL      string `yaml:"collector_url"`
	CleanerURL        string `yaml:"cleaner_url"`
	ClassifierURL     string `yaml:"classifier_url"`
	ClassifierRootURL string `yaml:"classifier_root_url"`
	GeneratorURL      string `yaml:"generator_url"`
	SenderURL         string `yaml:"sender_url"`
	CRMUpdaterURL     string `yaml:"crm_updater_url"`

	SendUserID        string `yaml:"send_user_id"`
	SendUserEmail     string `yaml:"send_user_email"`
	SendUserMailboxID string `yaml:"send_user_mailbox_id"`

	ReplyTone     string `yaml:"reply_tone"`
	ReplyLanguage string `yaml:"reply_language"`

	ExternalHTTPTimeoutSeconds int `yaml:"external_http_timeout_seconds"`
	ProbeTimeoutSeconds        int `yaml:"classifier_probe_timeout_seconds"`
	CountdownSeconds           int `yaml:"send_countdown_seconds"`

	CollectSchedule string `yaml:"collect_schedule"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	AlertChannelID string `yaml:"alert_channel_id"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.CollectorURL, "COLLECTOR_URL")
	envOverride(&cfg.CleanerURL, "CLEANER_URL")
	envOverride(&cfg.ClassifierURL, "CLASSIFIER_URL")
	envOverride(&cfg.ClassifierRootURL, "CLASSIFIER_ROOT_URL")
	envOverride(&cfg.GeneratorURL, "GENERATOR_URL")
	envOverride(&cfg.SenderURL, "SENDER_URL")
	envOverride(&cfg.CRMUpdaterURL, "CRM_UPDATER_URL")
	envOverride(&cfg.SendUserID, "SEND_USER_ID")
	envOverride(&cfg.SendUserEmail, "SEND_USER_EMAIL")
	envOverride(&cfg.SendUserMailboxID, "SEND_USER_MAILBOX_ID")
	envOverride(&cfg.ReplyTone, "REPLY_TONE")
	envOverride(&cfg.ReplyLanguage, "REPLY_LANGUAGE")
	envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.ProbeTimeoutSeconds, "CLASSIFIER_PROBE_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.CountdownSeconds, "SEND_COUNTDOWN_SECONDS")
	envOverride(&cfg.CollectSchedule, "COLLECT_SCHEDULE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.AlertChannelID, "ALERT_CHANNEL_ID")

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./replydesk.db"
	}
	if cfg.ReplyTone == "" {
		cfg.ReplyTone = "professional, concise"
	}
	if cfg.ReplyLanguage == "" {
		cfg.ReplyLanguage = "fr"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = 30
	}
	if cfg.ProbeTimeoutSeconds == 0 {
		cfg.ProbeTimeoutSeconds = 3
	}
	if cfg.CountdownSeconds == 0 {
		cfg.CountdownSeconds = 5
	}

	return cfg
}

// Validate checks fields without which the service cannot do anything useful.
// Slack alerting and the collect schedule are optional.
func (c Config) Validate() error {
	var missing []string
	if c.CollectorURL == "" {
		missing = append(missing, "collector_url")
	}
	if c.CleanerURL == "" {
		missing = append(missing, "cleaner_url")
	}
	if c.ClassifierURL == "" {
		missing = append(missing, "classifier_url")
	}
	if c.GeneratorURL == "" {
		missing = append(missing, "generator_url")
	}
	if c.SenderURL == "" {
		missing = append(missing, "sender_url")
	}
	if c.CRMUpdaterURL == "" {
		missing = append(missing, "crm_updater_url")
	}
	if c.SendUserEmail == "" {
		missing = append(missing, "send_user_email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.AlertChannelID != ""
}

func envOverride(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envOverrideInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		} else {
			log.Printf("Invalid %s value '%s', keeping %d", key, v, *target)
		}
	}
}
