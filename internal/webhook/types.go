package webhook

import "embymerge/internal/merge"

// ScanResponse is the JSON body returned by POST /api/scan.
type ScanResponse struct {
	DryRun         bool         `json:"dry_run"`
	Items          int          `json:"items"`
	Excluded       int          `json:"excluded"`
	Groups         int          `json:"groups"`
	Merged         int          `json:"merged"`
	SkippedTooMany int          `json:"skipped_too_many"`
	SkippedTooFew  int          `json:"skipped_too_few"`
	Errors         int          `json:"errors"`
	DurationMillis int64        `json:"duration_ms"`
	Results        []ScanResult `json:"results,omitempty"`
}

// ScanResult describes one group that merged, would merge, was ambiguous, or failed.
type ScanResult struct {
	Name    string   `json:"name"`
	IDs     []string `json:"ids"`
	Outcome string   `json:"outcome"`
	Message string   `json:"message"`
}

// NewScanResponse summarizes a scan report for API and CLI output.
func NewScanResponse(report merge.ScanReport) ScanResponse {
	counts := report.Counts()
	resp := ScanResponse{
		DryRun:         report.DryRun,
		Items:          report.Items,
		Excluded:       report.Excluded,
		Groups:         len(report.Results),
		Merged:         counts[merge.KindMerged],
		SkippedTooMany: counts[merge.KindSkippedTooMany],
		SkippedTooFew:  counts[merge.KindSkippedTooFew],
		Errors:         counts[merge.KindError],
		DurationMillis: report.Duration.Milliseconds(),
	}
	for _, result := range report.Results {
		// Singletons are omitted.
		if result.Outcome.Kind == merge.KindSkippedTooFew {
			continue
		}
		resp.Results = append(resp.Results, ScanResult{
			Name:    result.Group.Name,
			IDs:     result.Group.IDs,
			Outcome: string(result.Outcome.Kind),
			Message: result.Outcome.Message(),
		})
	}
	return resp
}
