package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"embymerge/internal/config"
	"embymerge/internal/logging"
	"embymerge/internal/merge"
	"embymerge/internal/metrics"
	"embymerge/internal/notifications"
	"embymerge/internal/services"
	"embymerge/internal/webhook"
)

const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// Daemon coordinates the webhook server, scheduled jobs, and scans, and
// enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  *merge.Service
	server   *webhook.Server
	metrics  *metrics.Manager
	notifier notifications.Service
	rotator  *logging.Rotator

	scheduler  *cron.Cron
	scanEntry  cron.EntryID
	scans      singleflight.Group
	lastScanMu sync.Mutex
	lastScan   *ScanSummary

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctxMu   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// ScanSummary records the most recent completed scan.
type ScanSummary struct {
	Trigger    string
	FinishedAt time.Time
	Merged     int
	Skipped    int
	Failed     int
	Err        string
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	LockFilePath string
	NextScan     time.Time
	LastScan     *ScanSummary
}

// Option customizes a Daemon.
type Option func(*Daemon)

func WithMetrics(m *metrics.Manager) Option {
	return func(d *Daemon) { d.metrics = m }
}

func WithNotifier(n notifications.Service) Option {
	return func(d *Daemon) { d.notifier = n }
}

// WithRotator schedules midnight rotation of the rotator's log files.
func WithRotator(r *logging.Rotator) Option {
	return func(d *Daemon) { d.rotator = r }
}

// New constructs a daemon around the given library client.
func New(cfg *config.Config, logger *slog.Logger, library merge.Library, opts ...Option) (*Daemon, error) {
	if cfg == nil || library == nil {
		return nil, errors.New("daemon requires config and library client")
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: cfg.LockFilePath(),
		lock:     flock.New(cfg.LockFilePath()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = metrics.NewManager()
	}
	if d.notifier == nil {
		d.notifier = notifications.NewService(cfg)
	}

	d.service = merge.NewService(cfg, library,
		merge.WithLogger(logger),
		merge.WithRecorder(d.metrics),
		merge.WithNotifier(d.notifier),
	)
	d.server = webhook.New(cfg, d.service,
		webhook.WithLogger(logger),
		webhook.WithMetricsHandler(d.metrics.Handler()),
		webhook.WithScan(func(ctx context.Context, opts merge.ScanOptions) (merge.ScanReport, error) {
			return d.RunScan(ctx, TriggerAPI, opts)
		}),
	)

	return d, nil
}

func (d *Daemon) newScheduler() *cron.Cron {
	schedLogger := cronLogger{logger: d.logger}
	return cron.New(
		cron.WithLogger(schedLogger),
		cron.WithChain(cron.Recover(schedLogger), cron.SkipIfStillRunning(schedLogger)),
	)
}

// Service exposes the merge service, mainly for tests.
func (d *Daemon) Service() *merge.Service {
	return d.service
}

// Start acquires the daemon lock, starts the webhook server, and registers
// the scheduled jobs.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another embymerge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	scheduler := d.newScheduler()
	scanEntry, err := d.registerJobs(runCtx, scheduler)
	if err == nil {
		err = d.server.Start(runCtx)
	}
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.ctxMu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.ctxMu.Unlock()
	d.scheduler, d.scanEntry = scheduler, scanEntry
	d.scheduler.Start()

	d.running.Store(true)
	d.logger.Info("embymerge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.Addr()),
	)
	return nil
}

func (d *Daemon) registerJobs(ctx context.Context, scheduler *cron.Cron) (cron.EntryID, error) {
	if d.rotator != nil {
		if _, err := logging.ScheduleDailyRotation(scheduler, d.rotator, d.logger); err != nil {
			return 0, fmt.Errorf("schedule log rotation: %w", err)
		}
	}
	spec := d.cfg.Merge.ScanSchedule
	if spec == "" {
		return 0, nil
	}
	id, err := scheduler.AddFunc(spec, func() {
		_, _ = d.RunScan(ctx, TriggerSchedule, merge.ScanOptions{})
	})
	if err != nil {
		return 0, fmt.Errorf("schedule library scan %q: %w", spec, err)
	}
	d.logger.Info("library scan scheduled", logging.String("schedule", spec))
	return id, nil
}

// Run starts the daemon, runs the startup scan when enabled, and blocks until
// ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer d.Stop()

	g, gctx := errgroup.WithContext(d.lifetime())
	if d.cfg.Merge.ScanOnStartup {
		g.Go(func() error {
			// Scan failures are recorded as outcomes and must not stop the daemon.
			_, _ = d.RunScan(gctx, TriggerStartup, merge.ScanOptions{})
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// Stop stops the scheduler and server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.ctxMu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	d.ctxMu.Unlock()
	<-d.scheduler.Stop().Done()
	d.server.Stop()
	d.service.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance running"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("embymerge daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.rotator.Close()
}

// RunScan performs a library scan. Concurrent calls with the same dry-run
// setting share one scan and its report. The scan keeps running when a
// caller's ctx ends and stops only when the daemon stops; that caller gets
// ctx.Err() back.
func (d *Daemon) RunScan(ctx context.Context, trigger string, opts merge.ScanOptions) (merge.ScanReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	key := "scan"
	if opts.DryRun {
		key = "scan-dry-run"
	}

	results := d.scans.DoChan(key, func() (any, error) {
		scanCtx, cancel := d.scanContext(ctx)
		defer cancel()
		scanCtx = services.WithTrigger(scanCtx, trigger)
		report, err := d.service.ScanLibrary(scanCtx, opts)
		d.metrics.RecordScan(trigger, err)
		if !opts.DryRun {
			d.recordScan(scanCtx, trigger, report, err)
		}
		return report, err
	})

	select {
	case res := <-results:
		if res.Shared {
			d.logger.Debug("joined in-flight library scan", logging.String(logging.FieldTrigger, trigger))
		}
		report, _ := res.Val.(merge.ScanReport)
		return report, res.Err
	case <-ctx.Done():
		d.logger.Debug("stopped waiting for library scan",
			logging.String(logging.FieldTrigger, trigger),
			logging.Error(ctx.Err()),
		)
		return merge.ScanReport{}, ctx.Err()
	}
}

// scanContext detaches the scan from the caller that started it while keeping
// its values. The scan is cancelled when the daemon stops.
func (d *Daemon) scanContext(ctx context.Context) (context.Context, context.CancelFunc) {
	scanCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	lifetime := d.lifetime()
	if lifetime == nil {
		return scanCtx, cancel
	}
	stop := context.AfterFunc(lifetime, cancel)
	return scanCtx, func() {
		stop()
		cancel()
	}
}

func (d *Daemon) lifetime() context.Context {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	return d.ctx
}

func (d *Daemon) recordScan(ctx context.Context, trigger string, report merge.ScanReport, scanErr error) {
	counts := report.Counts()
	summary := &ScanSummary{
		Trigger:    trigger,
		FinishedAt: time.Now(),
		Merged:     counts[merge.KindMerged],
		Skipped:    counts[merge.KindSkippedTooMany] + counts[merge.KindSkippedTooFew],
		Failed:     counts[merge.KindError],
	}
	if scanErr != nil {
		summary.Err = scanErr.Error()
		summary.Failed++
	}

	d.lastScanMu.Lock()
	d.lastScan = summary
	d.lastScanMu.Unlock()

	if err := d.notifier.NotifyScanCompleted(ctx, notifications.ScanSummary{
		Trigger:  trigger,
		Merged:   summary.Merged,
		Skipped:  summary.Skipped,
		Failed:   summary.Failed,
		Duration: report.Duration,
	}); err != nil {
		logging.WarnWithContext(d.logger, "scan notification not sent", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "operator not alerted"),
		)
	}
}

// Status reports runtime information.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Address:      d.server.Addr(),
		LockFilePath: d.lockPath,
	}
	if status.Running && d.scanEntry != 0 {
		entry := d.scheduler.Entry(d.scanEntry)
		status.NextScan = entry.Next
		if status.NextScan.IsZero() && entry.Schedule != nil {
			status.NextScan = entry.Schedule.Next(time.Now())
		}
	}
	d.lastScanMu.Lock()
	if d.lastScan != nil {
		last := *d.lastScan
		status.LastScan = &last
	}
	d.lastScanMu.Unlock()
	return status
}
