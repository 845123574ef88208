// Package keychain reads and writes bot secrets in the OS keychain.
package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "openbot"

// Account names used by the bot.
const (
	TelegramToken = "telegram-token"
	WSBridgeToken = "wsbridge-token"
)

// Get retrieves a secret from the system keychain.
func Get(account string) (string, error) {
	return keyring.Get(serviceName, account)
}

// Set stores a secret in the system keychain.
func Set(account, value string) error {
	return keyring.Set(serviceName, account, value)
}

// Lookup is Get that treats a missing entry as empty.
func Lookup(account string) (string, error) {
	v, err := keyring.Get(serviceName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keychain %s: %w", account, err)
	}
	return v, nil
}
