package services

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zalando/go-keyring"
)

// resolveAPIKey returns the configured key for provider. Placeholder values
// from the sample .env count as unset. When no key is configured and a
// keyring service is named, the key is read from the OS keyring under the
// provider's name.
func resolveAPIKey(provider, configured, keyringService string) (string, error) {
	key := strings.TrimSpace(configured)
	if key == fmt.Sprintf("your_%s_api_key_here", provider) {
		key = ""
	}
	if key != "" || keyringService == "" {
		return key, nil
	}

	secret, err := keyring.Get(keyringService, provider)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %s key from keyring", provider)
	}
	return strings.TrimSpace(secret), nil
}
