package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/natexcvi/go-chatgpt/engines"
)

// Key fingerprints any JSON-serializable value. The value is serialized to
// canonical JSON (object keys sorted at every level) before hashing, so
// structurally equal values always share a key.
func Key(v any) (string, error) {
	canonical, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprint returns the cache key of a conversation.
func Fingerprint(prompt *engines.ChatPrompt) string {
	key, err := Key(prompt.History)
	if err != nil {
		// ChatMessage holds only strings and slices of them
		panic(fmt.Sprintf("failed to fingerprint conversation: %s", err))
	}
	return key
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	// maps are marshaled with sorted keys
	return json.Marshal(generic)
}
