package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"embymerge/internal/emby"
	"embymerge/internal/logging"
	"embymerge/internal/merge"
	"embymerge/internal/notifications"
	"embymerge/internal/webhook"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the whole library once and merge every pair of same-named movies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, rotator, err := logging.New(logging.Options{
				Level:       cfg.Logging.Level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{cfg.LogFilePath()},
				Retention:   cfg.Logging.Retention,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer rotator.Close()

			client := emby.NewFromConfig(cfg, emby.WithLogger(logger))
			notifier := notifications.NewService(cfg)
			svc := merge.NewService(cfg, client,
				merge.WithLogger(logger),
				merge.WithNotifier(notifier),
			)
			report, err := svc.ScanLibrary(cmd.Context(), merge.ScanOptions{DryRun: dryRun})
			if !dryRun {
				if notifyErr := notifier.NotifyScanCompleted(cmd.Context(), scanSummary(report, err)); notifyErr != nil {
					logging.WarnWithContext(logger, "scan notification not sent", "notification_failed",
						logging.Error(notifyErr),
						logging.String(logging.FieldImpact, "operator not alerted"),
					)
				}
			}
			if err != nil {
				return fmt.Errorf("scan library: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, webhook.NewScanResponse(report))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderScanReport(report))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be merged without merging")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the report as JSON")
	return cmd
}

// scanSummary folds a scan into one notification; a failed listing counts as
// one failure.
func scanSummary(report merge.ScanReport, scanErr error) notifications.ScanSummary {
	counts := report.Counts()
	summary := notifications.ScanSummary{
		Merged:   counts[merge.KindMerged],
		Skipped:  counts[merge.KindSkippedTooMany] + counts[merge.KindSkippedTooFew],
		Failed:   counts[merge.KindError],
		Duration: report.Duration,
	}
	if scanErr != nil {
		summary.Failed++
	}
	return summary
}

func renderScanReport(report merge.ScanReport) string {
	var b strings.Builder
	mode := ""
	if report.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(&b, "Scanned %d items, %d excluded, %d groups in %s%s\n",
		report.Items, report.Excluded, len(report.Results), report.Duration.Round(time.Millisecond), mode)

	var rows [][]string
	for _, result := range report.Results {
		if result.Outcome.Kind == merge.KindSkippedTooFew {
			continue
		}
		rows = append(rows, []string{
			result.Group.Name,
			strconv.Itoa(len(result.Group.IDs)),
			strings.Join(result.Group.IDs, ", "),
			outcomeLabel(result.Outcome, report.DryRun),
		})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable([]string{"Name", "Versions", "IDs", "Outcome"}, rows, 1))
		b.WriteString("\n")
	}

	counts := report.Counts()
	fmt.Fprintf(&b, "Merged: %d  Skipped (more than two): %d  Single: %d  Errors: %d\n",
		counts[merge.KindMerged],
		counts[merge.KindSkippedTooMany],
		counts[merge.KindSkippedTooFew],
		counts[merge.KindError],
	)
	return b.String()
}

func outcomeLabel(outcome merge.Outcome, dryRun bool) string {
	switch outcome.Kind {
	case merge.KindMerged:
		if dryRun {
			return "would merge"
		}
		return "merged"
	case merge.KindSkippedTooMany:
		return "skipped: more than two"
	case merge.KindError:
		if outcome.Err != nil {
			return "error: " + outcome.Err.Error()
		}
		return "error"
	default:
		return string(outcome.Kind)
	}
}
