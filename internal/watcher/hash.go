package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"gopkg.in/yaml.v3"
)

// semanticHash computes a hash of the YAML document while ignoring volatile
// top-level fields. This prevents restart nagging when only bookkeeping
// metadata changes.
func semanticHash(data []byte) (string, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		// Not valid YAML; fall back to a raw hash.
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:]), nil
	}

	delete(m, "updated-at")
	delete(m, "last-started")

	// Re-marshal for a stable byte representation; yaml.v3 emits map keys in
	// sorted order.
	cleaned, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(cleaned)
	return hex.EncodeToString(sum[:]), nil
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return semanticHash(data)
}
