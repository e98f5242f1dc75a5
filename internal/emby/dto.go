package emby

// ItemsResponse models the /Items listing payload.
type ItemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// Item is the subset of an Emby library item the merge pipelines need.
type Item struct {
	ID          string            `json:"Id"`
	Name        string            `json:"Name"`
	Path        string            `json:"Path,omitempty"`
	Type        string            `json:"Type,omitempty"`
	ProviderIDs map[string]string `json:"ProviderIds,omitempty"`
}

// SystemInfo is the subset of /System/Info used by preflight checks.
type SystemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}
