package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"embymerge/internal/config"
	"embymerge/internal/daemon"
	"embymerge/internal/emby"
	"embymerge/internal/logging"
	"embymerge/internal/metrics"
	"embymerge/internal/notifications"
	"embymerge/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the embymerge daemon runtime loop and blocks until SIGINT or
// SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if strings.TrimSpace(opts.LogLevel) != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, rotator, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", cfg.LogFilePath()},
		Retention:   cfg.Logging.Retention,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logConfigSnapshot(logger, cfg)
	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "embymerged.pid")
	if err := writePIDFile(pidPath); err != nil {
		_ = rotator.Close()
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	manager := metrics.NewManager()
	client := emby.NewFromConfig(cfg,
		emby.WithObserver(manager.ObserveRequest),
		emby.WithLogger(logger),
	)

	d, err := daemon.New(cfg, logger, client,
		daemon.WithMetrics(manager),
		daemon.WithNotifier(notifications.NewService(cfg)),
		daemon.WithRotator(rotator),
	)
	if err != nil {
		_ = rotator.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the bind address and that no other embymerged is running"),
		)
		return err
	}
	logger.Info("embymerge daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("emby_url", cfg.Emby.BaseURL),
		logging.Bool("emby_key_present", strings.TrimSpace(cfg.Emby.APIKey) != ""),
		logging.String("bind", cfg.Server.Bind),
		logging.String("webhook_path", cfg.Server.WebhookPath),
		logging.Bool("scan_api", cfg.Server.ScanAPI),
		logging.Strings("providers", cfg.Merge.Providers),
		logging.Bool("provider_fallback", cfg.Merge.ProviderFallback),
		logging.Strings("ignore_paths", cfg.Merge.IgnorePaths),
		logging.Bool("scan_on_startup", cfg.Merge.ScanOnStartup),
		logging.String("scan_schedule", cfg.Merge.ScanSchedule),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.String("log_file", cfg.LogFilePath()),
		logging.Int("log_retention", cfg.Logging.Retention),
	)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "webhooks and scans may fail until resolved"),
		)
	}
}
