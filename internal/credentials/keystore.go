package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const keystoreService = "mailcheck"

// Tokens are stored per backend, keyed by its base URL.
func account(serverURL string) string {
	return strings.TrimRight(strings.TrimSpace(serverURL), "/")
}

// Token returns the bearer token stored for serverURL, or "" when none is.
func Token(serverURL string) (string, error) {
	token, err := keyring.Get(keystoreService, account(serverURL))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token from keychain: %w", err)
	}
	return token, nil
}

func SetToken(serverURL, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}
	if account(serverURL) == "" {
		return errors.New("server URL must not be empty")
	}
	if err := keyring.Set(keystoreService, account(serverURL), token); err != nil {
		return fmt.Errorf("store token in keychain: %w", err)
	}
	return nil
}

// ClearToken removes the token for serverURL. Removing a missing token is not an error.
func ClearToken(serverURL string) error {
	err := keyring.Delete(keystoreService, account(serverURL))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete token from keychain: %w", err)
	}
	return nil
}

func HasToken(serverURL string) bool {
	token, err := Token(serverURL)
	return err == nil && token != ""
}
