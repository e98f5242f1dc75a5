package merge

import (
	"bytes"
	"encoding/json"

	"embymerge/internal/services"
)

// WebhookPayload is the subset of an Emby webhook notification used here.
type WebhookPayload struct {
	Event string       `json:"Event"`
	Title string       `json:"Title"`
	Item  *PayloadItem `json:"Item"`
}

// PayloadItem is the library item a webhook refers to.
type PayloadItem struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Type        string            `json:"Type"`
	Path        string            `json:"Path"`
	ProviderIDs map[string]string `json:"ProviderIds"`
}

// ItemName returns the payload item's display name, or "" when absent.
func (p WebhookPayload) ItemName() string {
	if p.Item == nil {
		return ""
	}
	return p.Item.Name
}

// ParsePayload decodes a webhook body. The body must be a JSON object with an
// Item object; anything else is reported as services.ErrMalformedPayload.
func ParsePayload(raw []byte) (WebhookPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return WebhookPayload{}, services.Wrap(services.ErrMalformedPayload, PipelineWebhook, "parse payload", "empty body", nil)
	}
	var payload WebhookPayload
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return WebhookPayload{}, services.Wrap(services.ErrMalformedPayload, PipelineWebhook, "parse payload", "", err)
	}
	if payload.Item == nil {
		return WebhookPayload{}, services.Wrap(services.ErrMalformedPayload, PipelineWebhook, "parse payload", "missing Item object", nil)
	}
	return payload, nil
}
