package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"replydesk/internal/config"
	"replydesk/internal/crm"
	"replydesk/internal/model"
)

// DefaultClassifierType is substituted whenever the classifier root probe
// fails or times out. The probe is advisory; the CRM flow must not block on it.
const DefaultClassifierType = "email"

// ErrInvalidReply means the generator answered 2xx but without a usable
// response_text field.
var ErrInvalidReply = errors.New("generator returned no response_text")

// Client wraps the external services as single request/response exchanges.
// No retries; the only per-call timeout is the classifier root probe.
type Client struct {
	httpClient *http.Client

	collectorURL      string
	cleanerURL        string
	classifierURL     string
	classifierRootURL string
	generatorURL      string
	senderURL         string
	crmUpdaterURL     string

	tone         string
	language     string
	probeTimeout time.Duration
}

func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	return &Client{
		httpClient:        httpClient,
		collectorURL:      cfg.CollectorURL,
		cleanerURL:        cfg.CleanerURL,
		classifierURL:     cfg.ClassifierURL,
		classifierRootURL: cfg.ClassifierRootURL,
		generatorURL:      cfg.GeneratorURL,
		senderURL:         cfg.SenderURL,
		crmUpdaterURL:     cfg.CRMUpdaterURL,
		tone:              cfg.ReplyTone,
		language:          cfg.ReplyLanguage,
		probeTimeout:      time.Duration(cfg.ProbeTimeoutSeconds) * time.Second,
	}
}

// Collect triggers the collector and returns its raw campaign payload.
func (c *Client) Collect(ctx context.Context) (model.CollectPayload, error) {
	var payload model.CollectPayload
	err := c.postJSON(ctx, c.collectorURL, nil, &payload)
	return payload, err
}

// CleanBody strips outreach noise (quoted history, signatures) from a raw
// reply body via the cleaning service.
func (c *Client) CleanBody(ctx context.Context, body string) (string, error) {
	req := struct {
		Body   string `json:"body"`
		UseLLM bool   `json:"use_llm"`
	}{Body: body, UseLLM: true}

	var resp struct {
		CleanBody string `json:"clean_body"`
	}
	if err := c.postJSON(ctx, c.cleanerURL, req, &resp); err != nil {
		return "", err
	}
	return resp.CleanBody, nil
}

type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (c *Client) Classify(ctx context.Context, cleanBody string) (Classification, error) {
	req := struct {
		CleanBody string `json:"clean_body"`
		UseLLM    bool   `json:"use_llm"`
	}{CleanBody: cleanBody, UseLLM: true}

	var resp Classification
	err := c.postJSON(ctx, c.classifierURL, req, &resp)
	return resp, err
}

// GenerateReply asks the generator for a drafted answer and unwraps its
// fenced-JSON envelope into plain text with real newlines.
func (c *Client) GenerateReply(ctx context.Context, label, cleanBody string) (string, error) {
	req := struct {
		ClassificationResult struct {
			Label string `json:"label"`
		} `json:"classification_result"`
		OriginalEmail string            `json:"original_email"`
		Context       map[string]string `json:"context"`
		Tone          string            `json:"tone"`
		Language      string            `json:"language"`
	}{
		OriginalEmail: cleanBody,
		Context:       map[string]string{},
		Tone:          c.tone,
		Language:      c.language,
	}
	req.ClassificationResult.Label = label

	var resp struct {
		ResponseText string `json:"response_text"`
	}
	if err := c.postJSON(ctx, c.generatorURL, req, &resp); err != nil {
		return "", err
	}
	if resp.ResponseText == "" {
		return "", ErrInvalidReply
	}
	return DecodeGeneratedReply(resp.ResponseText)
}

// SendRequest carries the operator routing fields plus the reply itself.
type SendRequest struct {
	SendUserID        string       `json:"sendUserId"`
	SendUserEmail     string       `json:"sendUserEmail"`
	SendUserMailboxID string       `json:"sendUserMailboxId"`
	ContactID         model.FlexID `json:"contactId"`
	LeadID            model.FlexID `json:"leadId"`
	Subject           string       `json:"subject"`
	Message           string       `json:"message"`
}

// SendEmail posts the reply to the outbound sender. The ack body is opaque.
func (c *Client) SendEmail(ctx context.Context, req SendRequest) error {
	return c.postJSON(ctx, c.senderURL, req, nil)
}

// ClassifierType probes the classifier root for its type tag, with a short
// cancellation window. Any failure yields the default type, never an error.
func (c *Client) ClassifierType(ctx context.Context) string {
	if c.classifierRootURL == "" {
		return DefaultClassifierType
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.classifierRootURL, nil)
	if err != nil {
		return DefaultClassifierType
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("classifier type probe failed, using %q: %v", DefaultClassifierType, err)
		return DefaultClassifierType
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("classifier type probe returned %d, using %q", resp.StatusCode, DefaultClassifierType)
		return DefaultClassifierType
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || probe.Type == "" {
		return DefaultClassifierType
	}
	return probe.Type
}

// UpdateCRM pushes a classification/generation record to the CRM updater.
func (c *Client) UpdateCRM(ctx context.Context, payload crm.Payload) (crm.UpdateResult, error) {
	var result crm.UpdateResult
	err := c.postJSON(ctx, c.crmUpdaterURL, payload, &result)
	return result, err
}

func (c *Client) postJSON(ctx context.Context, url string, reqBody, out any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{URL: url, Err: err}
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
