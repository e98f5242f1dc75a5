package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEmby(); err != nil {
		return err
	}
	c.normalizeServer()
	if err := c.normalizeMerge(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEmby() error {
	if strings.TrimSpace(c.Emby.BaseURL) == "" {
		if value, ok := os.LookupEnv("EMBY_BASE_URL"); ok {
			c.Emby.BaseURL = value
		}
	}
	if strings.TrimSpace(c.Emby.APIKey) == "" {
		if value, ok := os.LookupEnv("EMBY_API_KEY"); ok {
			c.Emby.APIKey = value
		}
	}
	c.Emby.BaseURL = strings.TrimRight(strings.TrimSpace(c.Emby.BaseURL), "/")
	c.Emby.APIKey = strings.TrimSpace(c.Emby.APIKey)
	if c.Emby.RequestTimeout <= 0 {
		c.Emby.RequestTimeout = defaultEmbyRequestTimeout
	}
	return nil
}

func (c *Config) normalizeServer() {
	if value, ok := os.LookupEnv("EMBYMERGE_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Server.Bind = value
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.WebhookPath = strings.TrimSpace(c.Server.WebhookPath)
	if c.Server.WebhookPath == "" {
		c.Server.WebhookPath = defaultWebhookPath
	}
	if !strings.HasPrefix(c.Server.WebhookPath, "/") {
		c.Server.WebhookPath = "/" + c.Server.WebhookPath
	}
}

func (c *Config) normalizeMerge() error {
	providers := make([]string, 0, len(c.Merge.Providers))
	seen := make(map[string]struct{}, len(c.Merge.Providers))
	for _, provider := range c.Merge.Providers {
		// Provider keys stay case-sensitive; only whitespace is dropped.
		trimmed := strings.TrimSpace(provider)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		providers = append(providers, trimmed)
	}
	if len(providers) == 0 {
		providers = []string{defaultPreferredProvider}
	}
	c.Merge.Providers = providers

	if len(c.Merge.IgnorePaths) == 0 {
		if value, ok := os.LookupEnv("IGNORE_PATHS"); ok {
			c.Merge.IgnorePaths = SplitList(value)
		}
	}
	c.Merge.IgnorePaths = compactList(c.Merge.IgnorePaths)

	c.Merge.ItemTypes = compactList(c.Merge.ItemTypes)
	if len(c.Merge.ItemTypes) == 0 {
		c.Merge.ItemTypes = []string{defaultItemType}
	}

	if value, ok := os.LookupEnv("MERGE_ON_STARTUP"); ok && strings.TrimSpace(value) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("MERGE_ON_STARTUP: %w", err)
		}
		c.Merge.ScanOnStartup = enabled
	}
	c.Merge.ScanSchedule = strings.TrimSpace(c.Merge.ScanSchedule)
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File == "" {
		c.Logging.File = defaultLogFile
	}
	if c.Logging.Retention < 0 {
		c.Logging.Retention = 0
	}
}

func compactList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
