package merge_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"embymerge/internal/config"
	"embymerge/internal/media"
	"embymerge/internal/merge"
	"embymerge/internal/services"
)

type fakeLibrary struct {
	mu       sync.Mutex
	items    map[string][]media.LibraryItem
	all      []media.LibraryItem
	queryErr error
	mergeErr error
	queries  []string
	merges   [][2]string
}

func (f *fakeLibrary) Items(_ context.Context, filter *media.IdentityKey) ([]media.LibraryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if filter == nil {
		f.queries = append(f.queries, "")
		if f.queryErr != nil {
			return nil, f.queryErr
		}
		return f.all, nil
	}
	f.queries = append(f.queries, filter.String())
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.items[filter.String()], nil
}

func (f *fakeLibrary) MergeVersions(_ context.Context, firstID, secondID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.merges = append(f.merges, [2]string{firstID, secondID})
	return f.mergeErr
}

type recordedOutcome struct {
	pipeline string
	kind     merge.Kind
}

type fakeRecorder struct {
	outcomes []recordedOutcome
}

func (r *fakeRecorder) RecordOutcome(pipeline string, kind merge.Kind) {
	r.outcomes = append(r.outcomes, recordedOutcome{pipeline: pipeline, kind: kind})
}

type fakeNotifier struct {
	mu      sync.Mutex
	merged  []string
	failed  []string
	err     error
	release chan struct{}
}

func (n *fakeNotifier) NotifyMerged(_ context.Context, name string) error {
	if n.release != nil {
		<-n.release
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.merged = append(n.merged, name)
	return n.err
}

func (n *fakeNotifier) NotifyMergeFailed(_ context.Context, name string, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, name)
	return n.err
}

func newTestService(t *testing.T, library *fakeLibrary, mutate func(*config.Config), opts ...merge.Option) *merge.Service {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	return merge.NewService(&cfg, library, opts...)
}

func tmdbPayload(value string) merge.WebhookPayload {
	return merge.WebhookPayload{Item: &merge.PayloadItem{Name: "Incoming", ProviderIDs: map[string]string{"Tmdb": value}}}
}

func TestHandleWebhookMergesPair(t *testing.T) {
	library := &fakeLibrary{items: map[string][]media.LibraryItem{
		"tmdb.603": {
			{ID: "111", Name: "The Matrix", Path: "/media/Movies/The Matrix (1999).mkv"},
			{ID: "222", Name: "The Matrix", Path: "/media/Movies 4K/The Matrix (1999).mkv"},
		},
	}}
	recorder := &fakeRecorder{}
	notifier := &fakeNotifier{}
	svc := newTestService(t, library, nil, merge.WithRecorder(recorder), merge.WithNotifier(notifier))

	outcome := svc.HandleWebhook(context.Background(), tmdbPayload("603"))
	svc.Wait()

	if outcome.Kind != merge.KindMerged || outcome.Name != "The Matrix" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(library.queries) != 1 || library.queries[0] != "tmdb.603" {
		t.Fatalf("unexpected queries %v", library.queries)
	}
	if len(library.merges) != 1 || library.merges[0] != [2]string{"111", "222"} {
		t.Fatalf("unexpected merges %v", library.merges)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0] != (recordedOutcome{merge.PipelineWebhook, merge.KindMerged}) {
		t.Fatalf("unexpected recorded outcomes %+v", recorder.outcomes)
	}
	if len(notifier.merged) != 1 || notifier.merged[0] != "The Matrix" {
		t.Fatalf("unexpected notifications %v", notifier.merged)
	}
}

func TestHandleWebhookDoesNotWaitForNotification(t *testing.T) {
	library := &fakeLibrary{items: map[string][]media.LibraryItem{
		"tmdb.603": {{ID: "111", Name: "The Matrix"}, {ID: "222", Name: "The Matrix"}},
	}}
	notifier := &fakeNotifier{release: make(chan struct{})}
	svc := newTestService(t, library, nil, merge.WithNotifier(notifier))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan merge.Outcome, 1)
	go func() {
		done <- svc.HandleWebhook(ctx, tmdbPayload("603"))
	}()

	select {
	case outcome := <-done:
		if outcome.Kind != merge.KindMerged {
			t.Fatalf("unexpected outcome %+v", outcome)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook blocked on a slow notifier")
	}

	cancel()
	close(notifier.release)
	svc.Wait()
	if len(notifier.merged) != 1 {
		t.Fatalf("notification must still be sent after the request ends, got %v", notifier.merged)
	}
}

func TestHandleWebhookSkipsTooMany(t *testing.T) {
	library := &fakeLibrary{items: map[string][]media.LibraryItem{
		"tmdb.12180": {
			{ID: "1", Name: "Clone Wars"},
			{ID: "2", Name: "Clone Wars"},
			{ID: "3", Name: "Clone Wars"},
		},
	}}
	svc := newTestService(t, library, nil)

	outcome := svc.HandleWebhook(context.Background(), tmdbPayload("12180"))

	if outcome.Kind != merge.KindSkippedTooMany || outcome.Name != "Clone Wars" || outcome.Count != 3 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(library.merges) != 0 {
		t.Fatalf("expected no merge calls, got %v", library.merges)
	}
}

func TestHandleWebhookSkipsTooFew(t *testing.T) {
	library := &fakeLibrary{items: map[string][]media.LibraryItem{
		"tmdb.42": {{ID: "1", Name: "Rare Film"}},
	}}
	svc := newTestService(t, library, nil)

	outcome := svc.HandleWebhook(context.Background(), tmdbPayload("42"))

	if outcome.Kind != merge.KindSkippedTooFew || outcome.Name != "Rare Film" || outcome.Count != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(library.merges) != 0 {
		t.Fatalf("expected no merge calls, got %v", library.merges)
	}
}

func TestHandleWebhookExcludesIgnoredPaths(t *testing.T) {
	library := &fakeLibrary{items: map[string][]media.LibraryItem{
		"tmdb.109445": {
			{ID: "1", Name: "Frozen", Path: "/media/Movies/Frozen.mkv"},
			{ID: "2", Name: "Frozen", Path: "/media/Kids/Frozen.mkv"},
		},
	}}
	svc := newTestService(t, library, func(cfg *config.Config) {
		cfg.Merge.IgnorePaths = []string{"/Kids/"}
	})

	outcome := svc.HandleWebhook(context.Background(), tmdbPayload("109445"))

	if outcome.Kind != merge.KindSkippedTooFew || outcome.Count != 1 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(library.merges) != 0 {
		t.Fatalf("excluded item must not be merged, got %v", library.merges)
	}
}

func TestHandleWebhookMergeFailureBecomesOutcome(t *testing.T) {
	mergeErr := services.Wrap(services.ErrMerge, "emby", "merge versions", "status 500", nil)
	library := &fakeLibrary{
		items: map[string][]media.LibraryItem{
			"tmdb.603": {{ID: "111", Name: "The Matrix"}, {ID: "222", Name: "The Matrix"}},
		},
		mergeErr: mergeErr,
	}
	notifier := &fakeNotifier{err: errors.New("ntfy down")}
	svc := newTestService(t, library, nil, merge.WithNotifier(notifier))

	outcome := svc.HandleWebhook(context.Background(), tmdbPayload("603"))
	svc.Wait()

	if outcome.Kind != merge.KindError || outcome.Name != "The Matrix" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if !errors.Is(outcome.Err, services.ErrMerge) {
		t.Fatalf("expected ErrMerge cause, got %v", outcome.Err)
	}
	if len(library.merges) != 1 {
		t.Fatalf("merge must be attempted exactly once, got %d", len(library.merges))
	}
	if len(notifier.failed) != 1 {
		t.Fatalf("expected failure notification, got %v", notifier.failed)
	}
}

func TestHandleWebhookQueryFailureIsDistinctFromEmpty(t *testing.T) {
	library := &fakeLibrary{queryErr: services.Wrap(services.ErrQuery, "emby", "list items", "", errors.New("connection refused"))}
	svc := newTestService(t, library, nil)

	outcome := svc.HandleWebhook(context.Background(), tmdbPayload("603"))
	if outcome.Kind != merge.KindError || !errors.Is(outcome.Err, services.ErrQuery) {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	empty := newTestService(t, &fakeLibrary{}, nil).HandleWebhook(context.Background(), tmdbPayload("603"))
	if empty.Kind != merge.KindSkippedTooFew || empty.Count != 0 || empty.Name != "unknown" {
		t.Fatalf("unexpected empty outcome %+v", empty)
	}
}

func TestHandleWebhookWithoutIdentitySkipsLookup(t *testing.T) {
	library := &fakeLibrary{}
	recorder := &fakeRecorder{}
	svc := newTestService(t, library, nil, merge.WithRecorder(recorder))

	payload := merge.WebhookPayload{Item: &merge.PayloadItem{Name: "Home Video", ProviderIDs: map[string]string{"Imdb": "tt1"}}}
	outcome := svc.HandleWebhook(context.Background(), payload)

	if outcome.Kind != merge.KindNoIdentity || outcome.IsError() {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if !errors.Is(outcome.Err, services.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity cause, got %v", outcome.Err)
	}
	if len(library.queries) != 0 {
		t.Fatalf("expected no lookup, got %v", library.queries)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0].kind != merge.KindNoIdentity {
		t.Fatalf("unexpected recorded outcomes %+v", recorder.outcomes)
	}
}

func TestHandleWebhookProviderFallback(t *testing.T) {
	items := map[string][]media.LibraryItem{
		"tmdb.603":       {{ID: "111", Name: "The Matrix"}},
		"imdb.tt0133093": {{ID: "111", Name: "The Matrix"}, {ID: "222", Name: "The Matrix"}},
	}
	payload := merge.WebhookPayload{Item: &merge.PayloadItem{ProviderIDs: map[string]string{"Tmdb": "603", "Imdb": "tt0133093"}}}

	t.Run("enabled", func(t *testing.T) {
		library := &fakeLibrary{items: items}
		svc := newTestService(t, library, func(cfg *config.Config) {
			cfg.Merge.Providers = []string{"Tmdb", "Imdb"}
			cfg.Merge.ProviderFallback = true
		})
		outcome := svc.HandleWebhook(context.Background(), payload)
		if outcome.Kind != merge.KindMerged {
			t.Fatalf("unexpected outcome %+v", outcome)
		}
		if strings.Join(library.queries, ",") != "tmdb.603,imdb.tt0133093" {
			t.Fatalf("unexpected queries %v", library.queries)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		library := &fakeLibrary{items: items}
		svc := newTestService(t, library, func(cfg *config.Config) {
			cfg.Merge.Providers = []string{"Tmdb", "Imdb"}
		})
		outcome := svc.HandleWebhook(context.Background(), payload)
		if outcome.Kind != merge.KindSkippedTooFew {
			t.Fatalf("unexpected outcome %+v", outcome)
		}
		if len(library.queries) != 1 {
			t.Fatalf("expected a single lookup, got %v", library.queries)
		}
	})
}

func TestScanLibraryDecidesEveryGroup(t *testing.T) {
	library := &fakeLibrary{all: []media.LibraryItem{
		{ID: "1", Name: "Heat", Path: "/media/Movies/Heat.mkv"},
		{ID: "2", Name: "Alien", Path: "/media/Movies/Alien.mkv"},
		{ID: "3", Name: "Heat", Path: "/media/Movies 4K/Heat.mkv"},
		{ID: "4", Name: "Frozen", Path: "/media/Kids/Frozen.mkv"},
		{ID: "5", Name: "Frozen", Path: "/media/Movies/Frozen.mkv"},
		{ID: "6", Name: "Dune", Path: "/a"},
		{ID: "7", Name: "Dune", Path: "/b"},
		{ID: "8", Name: "Dune", Path: "/c"},
	}}
	recorder := &fakeRecorder{}
	svc := newTestService(t, library, func(cfg *config.Config) {
		cfg.Merge.IgnorePaths = []string{"/Kids/"}
	}, merge.WithRecorder(recorder))

	report, err := svc.ScanLibrary(context.Background(), merge.ScanOptions{})
	if err != nil {
		t.Fatalf("ScanLibrary: %v", err)
	}

	if report.Items != 8 || report.Excluded != 1 {
		t.Fatalf("items=%d excluded=%d", report.Items, report.Excluded)
	}
	names := make([]string, 0, len(report.Results))
	for _, result := range report.Results {
		names = append(names, result.Group.Name)
	}
	if strings.Join(names, ",") != "Heat,Alien,Frozen,Dune" {
		t.Fatalf("unexpected group order %v", names)
	}
	counts := report.Counts()
	if counts[merge.KindMerged] != 1 || counts[merge.KindSkippedTooFew] != 2 || counts[merge.KindSkippedTooMany] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if len(library.merges) != 1 || library.merges[0] != [2]string{"1", "3"} {
		t.Fatalf("unexpected merges %v", library.merges)
	}
	if len(recorder.outcomes) != 4 {
		t.Fatalf("expected one recorded outcome per group, got %d", len(recorder.outcomes))
	}
	for _, rec := range recorder.outcomes {
		if rec.pipeline != merge.PipelineScan {
			t.Fatalf("unexpected pipeline %q", rec.pipeline)
		}
	}
	if len(library.queries) != 1 || library.queries[0] != "" {
		t.Fatalf("scan should issue one unfiltered query, got %v", library.queries)
	}
}

func TestScanLibraryDryRunDoesNotMerge(t *testing.T) {
	library := &fakeLibrary{all: []media.LibraryItem{
		{ID: "1", Name: "Heat"},
		{ID: "2", Name: "Heat"},
	}}
	recorder := &fakeRecorder{}
	svc := newTestService(t, library, nil, merge.WithRecorder(recorder))

	report, err := svc.ScanLibrary(context.Background(), merge.ScanOptions{DryRun: true})
	if err != nil {
		t.Fatalf("ScanLibrary: %v", err)
	}
	if len(library.merges) != 0 {
		t.Fatalf("dry run must not merge, got %v", library.merges)
	}
	if merged := report.Merged(); len(merged) != 1 || merged[0].Decision.Pair != [2]string{"1", "2"} {
		t.Fatalf("unexpected merged results %+v", merged)
	}
	if len(recorder.outcomes) != 0 {
		t.Fatalf("dry run must not record outcomes, got %+v", recorder.outcomes)
	}
}

func TestScanLibraryQueryFailure(t *testing.T) {
	library := &fakeLibrary{queryErr: services.Wrap(services.ErrQuery, "emby", "list items", "status 401", nil)}
	recorder := &fakeRecorder{}
	svc := newTestService(t, library, nil, merge.WithRecorder(recorder))

	report, err := svc.ScanLibrary(context.Background(), merge.ScanOptions{})
	if !errors.Is(err, services.ErrQuery) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
	if len(report.Results) != 0 {
		t.Fatalf("expected no results, got %+v", report.Results)
	}
	if len(recorder.outcomes) != 1 || recorder.outcomes[0].kind != merge.KindError {
		t.Fatalf("unexpected recorded outcomes %+v", recorder.outcomes)
	}
}

func TestScanLibraryStopsOnCancellation(t *testing.T) {
	library := &fakeLibrary{all: []media.LibraryItem{{ID: "1", Name: "Heat"}, {ID: "2", Name: "Heat"}}}
	svc := newTestService(t, library, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.ScanLibrary(ctx, merge.ScanOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(library.merges) != 0 {
		t.Fatalf("expected no merges after cancellation, got %v", library.merges)
	}
}

func TestScanLibraryLeavesFailureAlertsToSummary(t *testing.T) {
	library := &fakeLibrary{
		all: []media.LibraryItem{
			{ID: "1", Name: "Heat"}, {ID: "2", Name: "Heat"},
			{ID: "3", Name: "Alien"}, {ID: "4", Name: "Alien"},
		},
		mergeErr: services.Wrap(services.ErrMerge, "emby", "merge versions", "status 500", nil),
	}
	notifier := &fakeNotifier{}
	svc := newTestService(t, library, nil, merge.WithNotifier(notifier))

	report, err := svc.ScanLibrary(context.Background(), merge.ScanOptions{})
	svc.Wait()
	if err != nil {
		t.Fatalf("ScanLibrary: %v", err)
	}
	if counts := report.Counts(); counts[merge.KindError] != 2 {
		t.Fatalf("expected two failed groups, got %v", counts)
	}
	if len(notifier.failed) != 0 || len(notifier.merged) != 0 {
		t.Fatalf("scan must not alert per group, got failed=%v merged=%v", notifier.failed, notifier.merged)
	}
}
