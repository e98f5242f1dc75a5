// Package daemon coordinates the long-running embymerge process.
//
// It wires the merge service, the webhook server, and the cron scheduler into
// a single lifecycle with flock-based locking to prevent multiple instances.
// The daemon runs the optional startup scan, periodic scans, and the midnight
// log rotation. Concurrent live scans share one run, as do concurrent dry
// runs.
package daemon
