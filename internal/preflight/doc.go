// Package preflight provides readiness checks for the Emby server and the
// filesystem paths embymerge depends on.
//
// The CLI "embymerge check" command runs RunAll and renders the results; the
// daemon runtime logs the same results at startup without refusing to start,
// since Emby may come up after the daemon.
package preflight
