// Package services defines shared utilities consumed by the merge pipelines
// and the Emby integration.
//
// Key responsibilities:
//   - Context helpers that stamp pipeline names, triggers, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     (malformed payload, query, merge, configuration) for logging and for
//     the webhook response code.
//
// Use these helpers when wiring new pipeline logic so error handling and
// observability stay uniform.
package services
