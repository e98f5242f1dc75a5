package merge

import "embymerge/internal/media"

// ExtractIdentities returns the identity keys present on the payload item for
// each provider, in provider order. Provider names match case-sensitively and
// blank values are ignored.
func ExtractIdentities(payload WebhookPayload, providers []string) []media.IdentityKey {
	if payload.Item == nil || len(payload.Item.ProviderIDs) == 0 {
		return nil
	}
	keys := make([]media.IdentityKey, 0, len(providers))
	for _, provider := range providers {
		value, ok := payload.Item.ProviderIDs[provider]
		if !ok {
			continue
		}
		if key, ok := media.NewIdentityKey(provider, value); ok {
			keys = append(keys, key)
		}
	}
	return keys
}
