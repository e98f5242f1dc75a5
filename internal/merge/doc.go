// Package merge decides which library items are combined into one
// multi-version entry.
//
// The pipeline is extract → query → filter → group → decide → execute. The
// decision itself is pure: a group of exactly two ids is merged, anything
// larger or smaller is skipped. Service wires the pipeline to a Library
// (normally the Emby client) for both the webhook path and full-library
// scans, and records every Outcome through the logger, metrics, and
// notifications.
package merge
