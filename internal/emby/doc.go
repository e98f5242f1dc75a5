// Package emby talks to the Emby media server REST API.
//
// The Client lists library items (optionally filtered by a provider identity)
// and asks the server to merge two items into one multi-version entry. All
// requests go through an injected HTTPDoer so the process can share one
// long-lived http.Client and tests can substitute httptest servers. Requests
// are single-attempt: failures are returned to the caller, never retried.
package emby
