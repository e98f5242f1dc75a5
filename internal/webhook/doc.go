// Package webhook serves the HTTP surface of the daemon: the Emby webhook
// endpoint, a health probe, Prometheus metrics, and an endpoint that starts
// a library scan.
//
// Every request is tagged with a correlation id taken from X-Request-ID or
// generated with uuid, echoed in the response header, and attached to the
// request context so pipeline logs can be joined with access logs.
package webhook
