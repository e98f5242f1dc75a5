package media_test

import (
	"testing"

	"embymerge/internal/media"
)

func TestIdentityKeyString(t *testing.T) {
	key, ok := media.NewIdentityKey("Tmdb", "603")
	if !ok {
		t.Fatal("expected key to be built")
	}
	if got := key.String(); got != "tmdb.603" {
		t.Fatalf("unexpected key string: %q", got)
	}

	key, ok = media.NewIdentityKey(" Imdb ", " tt0133093 ")
	if !ok {
		t.Fatal("expected key to be built")
	}
	if got := key.String(); got != "imdb.tt0133093" {
		t.Fatalf("unexpected key string: %q", got)
	}
}

func TestIdentityKeyRejectsBlankParts(t *testing.T) {
	if _, ok := media.NewIdentityKey("", "603"); ok {
		t.Fatal("expected blank provider to be rejected")
	}
	if _, ok := media.NewIdentityKey("Tmdb", "  "); ok {
		t.Fatal("expected blank value to be rejected")
	}
	var zero media.IdentityKey
	if !zero.IsZero() || zero.String() != "" {
		t.Fatalf("expected zero key to render empty, got %q", zero.String())
	}
}

func TestLibraryItemProviderIDIsCaseSensitive(t *testing.T) {
	item := media.LibraryItem{ProviderIDs: map[string]string{"Tmdb": "603", "Imdb": ""}}
	if value, ok := item.ProviderID("Tmdb"); !ok || value != "603" {
		t.Fatalf("unexpected provider lookup: %q %v", value, ok)
	}
	if _, ok := item.ProviderID("tmdb"); ok {
		t.Fatal("expected lowercase provider lookup to miss")
	}
	if _, ok := item.ProviderID("Imdb"); ok {
		t.Fatal("expected empty provider value to be treated as missing")
	}
	if _, ok := (media.LibraryItem{}).ProviderID("Tmdb"); ok {
		t.Fatal("expected nil provider map to miss")
	}
}
