package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// EmbyItem is a library entry served by FakeEmby.
type EmbyItem struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Path        string            `json:"Path,omitempty"`
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

// FakeEmby is an httptest server implementing the Emby endpoints embymerge uses.
type FakeEmby struct {
	Server *httptest.Server
	APIKey string

	mu          sync.Mutex
	items       []EmbyItem
	mergeStatus int
	itemsStatus int
	requests    []string
	merges      []string
}

// NewFakeEmby starts a fake server holding items. It is closed on test cleanup.
func NewFakeEmby(t testing.TB, apiKey string, items ...EmbyItem) *FakeEmby {
	t.Helper()
	f := &FakeEmby{
		APIKey:      apiKey,
		items:       items,
		mergeStatus: http.StatusNoContent,
		itemsStatus: http.StatusOK,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the server base URL.
func (f *FakeEmby) URL() string {
	return f.Server.URL
}

// SetMergeStatus changes the status returned by MergeVersions.
func (f *FakeEmby) SetMergeStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeStatus = status
}

// SetItemsStatus changes the status returned by the items listing.
func (f *FakeEmby) SetItemsStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemsStatus = status
}

// Requests returns "METHOD path" for every request received.
func (f *FakeEmby) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Merges returns the Ids value of every merge request.
func (f *FakeEmby) Merges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.merges...)
}

func (f *FakeEmby) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.URL.Query().Get("api_key") != f.APIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/emby/Items":
		if f.itemsStatus != http.StatusOK {
			w.WriteHeader(f.itemsStatus)
			return
		}
		filter := r.URL.Query().Get("AnyProviderIdEquals")
		matched := make([]EmbyItem, 0, len(f.items))
		for _, item := range f.items {
			if filter == "" || hasProviderID(item, filter) {
				matched = append(matched, item)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"Items": matched, "TotalRecordCount": len(matched)})
	case r.Method == http.MethodPost && r.URL.Path == "/emby/Videos/MergeVersions":
		f.merges = append(f.merges, r.URL.Query().Get("Ids"))
		w.WriteHeader(f.mergeStatus)
	case r.Method == http.MethodGet && r.URL.Path == "/emby/System/Info":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ServerName":"fake","Version":"4.8.0.0","Id":"fake-id"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func hasProviderID(item EmbyItem, filter string) bool {
	provider, value, ok := strings.Cut(filter, ".")
	if !ok {
		return false
	}
	for key, v := range item.ProviderIDs {
		if strings.EqualFold(key, provider) && v == value {
			return true
		}
	}
	return false
}
