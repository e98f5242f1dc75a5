package merge_test

import (
	"errors"
	"testing"

	"embymerge/internal/media"
	"embymerge/internal/merge"
	"embymerge/internal/services"
)

func TestParsePayload(t *testing.T) {
	payload, err := merge.ParsePayload([]byte(`{"Event":"library.new","Item":{"Name":"The Matrix","ProviderIds":{"Tmdb":"603","Imdb":"tt0133093"}}}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if payload.ItemName() != "The Matrix" || payload.Item.ProviderIDs["Tmdb"] != "603" {
		t.Fatalf("unexpected payload %+v", payload.Item)
	}
}

func TestParsePayloadRejectsMalformedBodies(t *testing.T) {
	for _, body := range []string{"", "   ", "not json", `{"Item":`, `{"Event":"x"}`, `[1,2]`} {
		_, err := merge.ParsePayload([]byte(body))
		if !errors.Is(err, services.ErrMalformedPayload) {
			t.Fatalf("body %q: expected ErrMalformedPayload, got %v", body, err)
		}
	}
}

func TestExtractIdentitiesFollowsProviderOrder(t *testing.T) {
	payload := merge.WebhookPayload{Item: &merge.PayloadItem{ProviderIDs: map[string]string{
		"Imdb": "tt0133093",
		"Tmdb": "603",
		"Tvdb": " ",
	}}}

	keys := merge.ExtractIdentities(payload, []string{"Tmdb", "Tvdb", "Imdb"})
	want := []media.IdentityKey{{Provider: "Tmdb", Value: "603"}, {Provider: "Imdb", Value: "tt0133093"}}
	if len(keys) != len(want) {
		t.Fatalf("keys = %+v, want %+v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %+v, want %+v", i, keys[i], want[i])
		}
	}
	if keys[0].String() != "tmdb.603" {
		t.Fatalf("String() = %q", keys[0].String())
	}
}

func TestExtractIdentitiesIsCaseSensitive(t *testing.T) {
	payload := merge.WebhookPayload{Item: &merge.PayloadItem{ProviderIDs: map[string]string{"tmdb": "603"}}}
	if keys := merge.ExtractIdentities(payload, []string{"Tmdb"}); len(keys) != 0 {
		t.Fatalf("expected no keys, got %+v", keys)
	}
}

func TestExtractIdentitiesWithoutProviderIDs(t *testing.T) {
	if keys := merge.ExtractIdentities(merge.WebhookPayload{Item: &merge.PayloadItem{}}, []string{"Tmdb"}); keys != nil {
		t.Fatalf("expected nil, got %+v", keys)
	}
	if keys := merge.ExtractIdentities(merge.WebhookPayload{}, []string{"Tmdb"}); keys != nil {
		t.Fatalf("expected nil, got %+v", keys)
	}
}
