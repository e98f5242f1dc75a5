package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEmby(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEmby() error {
	if strings.TrimSpace(c.Emby.BaseURL) == "" {
		return errors.New("emby.base_url is required. Set EMBY_BASE_URL or edit the config file (create with 'embymerge config init')")
	}
	parsed, err := url.Parse(c.Emby.BaseURL)
	if err != nil {
		return fmt.Errorf("emby.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("emby.base_url must use http or https, got %q", c.Emby.BaseURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("emby.base_url must include a host, got %q", c.Emby.BaseURL)
	}
	if strings.TrimSpace(c.Emby.APIKey) == "" {
		return errors.New("emby.api_key is required. Set EMBY_API_KEY or edit the config file")
	}
	if c.Emby.RequestTimeout <= 0 {
		return errors.New("emby.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		return errors.New("server.webhook_path must start with /")
	}
	return nil
}

func (c *Config) validateMerge() error {
	if len(c.Merge.Providers) == 0 {
		return errors.New("merge.providers must include at least one provider")
	}
	if len(c.Merge.ItemTypes) == 0 {
		return errors.New("merge.item_types must include at least one item type")
	}
	if c.Merge.ScanSchedule != "" {
		if _, err := cron.ParseStandard(c.Merge.ScanSchedule); err != nil {
			return fmt.Errorf("merge.scan_schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
		}
	}
	return nil
}
