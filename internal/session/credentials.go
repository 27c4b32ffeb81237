package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"

	"gitsage/internal/provider"
)

// keyringService namespaces gitsage entries in the OS keychain.
const keyringService = "gitsage"

// SlotGitHub is the credential slot for the GitHub token. It is not an
// LLM provider but shares the credential store.
const SlotGitHub = "github"

// CredentialSlots lists every name login and change-key accept.
var CredentialSlots = []string{
	provider.NameOpenAI,
	provider.NameGemini,
	provider.NameClaude,
	SlotGitHub,
}

var envVars = map[string]string{
	provider.NameOpenAI: "OPENAI_API_KEY",
	provider.NameGemini: "GEMINI_API_KEY",
	provider.NameClaude: "ANTHROPIC_API_KEY",
	SlotGitHub:          "GITHUB_TOKEN",
}

// EnvVar returns the environment variable consulted for a slot, "" for
// unknown slots.
func EnvVar(slot string) string {
	return envVars[slot]
}

// ValidSlot reports whether slot names a known credential.
func ValidSlot(slot string) bool {
	_, ok := envVars[slot]
	return ok
}

// Credential returns the key for a slot: the environment variable wins,
// then the keychain. A missing credential returns "" with no error.
func Credential(slot string) (string, error) {
	if !ValidSlot(slot) {
		return "", fmt.Errorf("unknown credential %q", slot)
	}
	if key := os.Getenv(envVars[slot]); key != "" {
		return key, nil
	}
	key, err := keyring.Get(keyringService, slot)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read keychain: %w", err)
	}
	return key, nil
}

// SetCredential stores the key for a slot in the keychain.
func SetCredential(slot, key string) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("unknown credential %q", slot)
	}
	if key == "" {
		return errors.New("empty credential")
	}
	if err := keyring.Set(keyringService, slot, key); err != nil {
		return fmt.Errorf("write keychain: %w", err)
	}
	return nil
}

// DeleteCredential removes a slot's key. A missing entry is not an error.
func DeleteCredential(slot string) error {
	if !ValidSlot(slot) {
		return fmt.Errorf("unknown credential %q", slot)
	}
	err := keyring.Delete(keyringService, slot)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete from keychain: %w", err)
	}
	return nil
}
