package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service under which secrets are stored.
const KeyringService = "propel"

var ErrMissingSecret = errors.New("secret not set")

// SecretNames lists the config keys that may live in the OS keyring.
var SecretNames = []string{"anthropic_api_key", "openai_api_key", "monday_api_token", "slack_bot_token"}

func IsSecretName(name string) bool {
	for _, n := range SecretNames {
		if n == name {
			return true
		}
	}
	return false
}

// GetSecret returns ErrMissingSecret when nothing is stored under name.
func GetSecret(name string) (string, error) {
	v, err := keyring.Get(KeyringService, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrMissingSecret
		}
		return "", fmt.Errorf("read %s from keyring: %w", name, err)
	}
	return v, nil
}

func SetSecret(name, value string) error {
	if !IsSecretName(name) {
		return fmt.Errorf("unknown secret %q", name)
	}
	if value == "" {
		return errors.New("secret value cannot be empty")
	}
	if err := keyring.Set(KeyringService, name, value); err != nil {
		return fmt.Errorf("store %s in keyring: %w", name, err)
	}
	return nil
}

func DeleteSecret(name string) error {
	err := keyring.Delete(KeyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrMissingSecret
	}
	return err
}

// fillSecretsFromKeyring fills empty secret fields. Keyring errors leave the
// field empty; Validate reports what is actually required.
func (c *Config) fillSecretsFromKeyring() {
	fields := map[string]*string{
		"anthropic_api_key": &c.AnthropicAPIKey,
		"openai_api_key":    &c.OpenAIAPIKey,
		"monday_api_token":  &c.MondayAPIToken,
		"slack_bot_token":   &c.SlackBotToken,
	}
	for name, field := range fields {
		if *field != "" {
			continue
		}
		if v, err := GetSecret(name); err == nil {
			*field = v
		}
	}
}
