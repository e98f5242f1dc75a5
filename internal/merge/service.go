package merge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"embymerge/internal/config"
	"embymerge/internal/logging"
	"embymerge/internal/media"
	"embymerge/internal/services"
)

const (
	PipelineWebhook = "webhook"
	PipelineScan    = "scan"
)

// Library is the media server surface the pipelines need.
type Library interface {
	Items(ctx context.Context, filter *media.IdentityKey) ([]media.LibraryItem, error)
	MergeVersions(ctx context.Context, firstID, secondID string) error
}

// Notifier pushes merge results to the operator.
type Notifier interface {
	NotifyMerged(ctx context.Context, name string) error
	NotifyMergeFailed(ctx context.Context, name string, err error) error
}

// Recorder counts outcomes per pipeline.
type Recorder interface {
	RecordOutcome(pipeline string, kind Kind)
}

// Service runs the webhook and scan pipelines.
type Service struct {
	library   Library
	filter    Filter
	providers []string
	fallback  bool
	notifier  Notifier
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time

	pending sync.WaitGroup
}

// Option customizes a Service.
type Option func(*Service)

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		if notifier != nil {
			s.notifier = notifier
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.NewComponentLogger(logger, "merge")
	}
}

// NewService builds a Service using the merge policy from cfg.
func NewService(cfg *config.Config, library Library, opts ...Option) *Service {
	s := &Service{
		library:   library,
		filter:    NewFilter(cfg.Merge.IgnorePaths),
		providers: append([]string(nil), cfg.Merge.Providers...),
		fallback:  cfg.Merge.ProviderFallback,
		notifier:  noopNotifier{},
		recorder:  noopRecorder{},
		logger:    logging.NewComponentLogger(nil, "merge"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleWebhook runs the webhook pipeline for one payload. Failures are
// returned as an Error outcome, never as a Go error.
func (s *Service) HandleWebhook(ctx context.Context, payload WebhookPayload) Outcome {
	ctx = services.WithPipeline(ctx, PipelineWebhook)
	logger := logging.WithContext(ctx, s.logger)

	keys := ExtractIdentities(payload, s.providers)
	if len(keys) == 0 {
		outcome := NoIdentity(payload.ItemName())
		s.record(ctx, logger, PipelineWebhook, outcome)
		return outcome
	}
	if !s.fallback {
		keys = keys[:1]
	}

	var group Group
	for i, key := range keys {
		items, err := s.library.Items(ctx, &key)
		if err != nil {
			outcome := Failed(payload.ItemName(), err)
			s.record(ctx, logger, PipelineWebhook, outcome)
			return outcome
		}
		included, excluded := s.filter.Apply(items)
		group = GroupByIdentity(included)
		logger.Debug("provider lookup complete",
			logging.String(logging.FieldIdentity, key.String()),
			logging.Int("items", len(items)),
			logging.Int("excluded", excluded),
		)
		if len(group.IDs) >= 2 || i == len(keys)-1 {
			break
		}
		logger.Info("too few items for provider, trying next provider",
			logging.String(logging.FieldIdentity, key.String()),
			logging.String("next_provider", keys[i+1].Provider),
			logging.Int("items", len(group.IDs)),
		)
	}

	outcome, _ := s.execute(ctx, logger, PipelineWebhook, group, false)
	return outcome
}

// ScanOptions controls a full-library scan.
type ScanOptions struct {
	// DryRun decides every group without calling the merge endpoint.
	DryRun bool
}

// ScanResult is the decision for one group of a scan.
type ScanResult struct {
	Group    Group
	Decision Decision
	Outcome  Outcome
}

// ScanReport summarizes a full-library scan.
type ScanReport struct {
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	Items     int
	Excluded  int
	Results   []ScanResult
}

// Counts tallies the scan outcomes by kind.
func (r ScanReport) Counts() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds()))
	for _, result := range r.Results {
		counts[result.Outcome.Kind]++
	}
	return counts
}

// Merged returns the results that merged (or would merge on a dry run).
func (r ScanReport) Merged() []ScanResult {
	var out []ScanResult
	for _, result := range r.Results {
		if result.Decision.Action == ActionMerge && result.Outcome.Kind == KindMerged {
			out = append(out, result)
		}
	}
	return out
}

// ScanLibrary lists every item of the configured types, groups them by name,
// and decides each group. A failed listing is returned as an error after
// being recorded; per-group merge failures are reported in the results.
func (s *Service) ScanLibrary(ctx context.Context, opts ScanOptions) (ScanReport, error) {
	ctx = services.WithPipeline(ctx, PipelineScan)
	logger := logging.WithContext(ctx, s.logger)

	report := ScanReport{StartedAt: s.now(), DryRun: opts.DryRun}
	logger.Info("library scan started", logging.Bool("dry_run", opts.DryRun))

	items, err := s.library.Items(ctx, nil)
	if err != nil {
		s.record(ctx, logger, PipelineScan, Failed("library", err))
		report.Duration = s.now().Sub(report.StartedAt)
		return report, err
	}
	included, excluded := s.filter.Apply(items)
	report.Items = len(items)
	report.Excluded = excluded

	for _, group := range GroupByName(included) {
		if err := ctx.Err(); err != nil {
			report.Duration = s.now().Sub(report.StartedAt)
			return report, err
		}
		outcome, decision := s.execute(ctx, logger, PipelineScan, group, opts.DryRun)
		report.Results = append(report.Results, ScanResult{Group: group, Decision: decision, Outcome: outcome})
	}

	report.Duration = s.now().Sub(report.StartedAt)
	counts := report.Counts()
	logger.Info("library scan complete",
		logging.Bool("dry_run", opts.DryRun),
		logging.Int("items", report.Items),
		logging.Int("excluded", report.Excluded),
		logging.Int("groups", len(report.Results)),
		logging.Int(string(KindMerged), counts[KindMerged]),
		logging.Int(string(KindSkippedTooMany), counts[KindSkippedTooMany]),
		logging.Int(string(KindError), counts[KindError]),
		logging.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *Service) execute(ctx context.Context, logger *slog.Logger, pipeline string, group Group, dryRun bool) (Outcome, Decision) {
	decision := Decide(group)
	outcome := decision.Outcome
	if decision.Action == ActionMerge {
		if dryRun {
			logger.Info("dry run: would merge",
				logging.String(logging.FieldGroupName, group.Name),
				logging.String("first_id", decision.Pair[0]),
				logging.String("second_id", decision.Pair[1]),
			)
			return outcome, decision
		}
		if err := s.library.MergeVersions(ctx, decision.Pair[0], decision.Pair[1]); err != nil {
			outcome = Failed(group.Name, err)
		}
	}
	if dryRun {
		logger.Debug(outcome.Message(), logging.Args(logging.DecisionAttrs("merge", decision.Action.String(), string(outcome.Kind))...)...)
		return outcome, decision
	}
	s.record(ctx, logger, pipeline, outcome, decision.Pair[:]...)
	return outcome, decision
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, pipeline string, outcome Outcome, ids ...string) {
	s.recorder.RecordOutcome(pipeline, outcome.Kind)

	attrs := []logging.Attr{
		logging.String(logging.FieldOutcome, string(outcome.Kind)),
		logging.String(logging.FieldGroupName, outcome.Name),
	}
	if outcome.Count > 0 {
		attrs = append(attrs, logging.Int("count", outcome.Count))
	}
	if len(ids) == 2 && ids[0] != "" {
		attrs = append(attrs, logging.String("first_id", ids[0]), logging.String("second_id", ids[1]))
	}

	switch outcome.Kind {
	case KindError:
		attrs = append(attrs, logging.Error(outcome.Err))
		logging.ErrorWithContext(logger, outcome.Message(), "merge_failed", attrs...)
		if pipeline == PipelineWebhook {
			s.notify(ctx, logger, "merge failure notification not sent", func(ctx context.Context) error {
				return s.notifier.NotifyMergeFailed(ctx, outcome.Name, outcome.Err)
			})
		}
	case KindMerged:
		logger.Info(outcome.Message(), logging.Args(attrs...)...)
		if pipeline == PipelineWebhook {
			s.notify(ctx, logger, "merge notification not sent", func(ctx context.Context) error {
				return s.notifier.NotifyMerged(ctx, outcome.Name)
			})
		}
	default:
		if outcome.Err != nil {
			attrs = append(attrs, logging.String("reason", outcome.Err.Error()))
		}
		logger.Info(outcome.Message(), logging.Args(attrs...)...)
	}
}

// notify sends a webhook notification in the background so the webhook
// response does not wait on ntfy. Scans report once through their summary.
func (s *Service) notify(ctx context.Context, logger *slog.Logger, failure string, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := send(ctx); err != nil {
			logging.WarnWithContext(logger, failure, "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator not alerted"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			)
		}
	}()
}

// Wait blocks until background notifications have been sent.
func (s *Service) Wait() {
	s.pending.Wait()
}

type noopNotifier struct{}

func (noopNotifier) NotifyMerged(context.Context, string) error              { return nil }
func (noopNotifier) NotifyMergeFailed(context.Context, string, error) error { return nil }

type noopRecorder struct{}

func (noopRecorder) RecordOutcome(string, Kind) {}
