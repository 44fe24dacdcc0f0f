// Request fingerprinting for the response cache.

package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprintPayload fixes the field set and order that define request
// identity. Identical logical requests must collide; any field difference
// must produce a different fingerprint.
type fingerprintPayload struct {
	Messages      []ChatMessage `json:"messages"`
	Model         string        `json:"model"`
	Temperature   float32       `json:"temperature"`
	JSONRequested bool          `json:"json_requested"`
}

// Fingerprint returns a deterministic hash of the request's semantically
// relevant fields, used as the cache key.
func Fingerprint(messages []ChatMessage, model string, temperature float32, jsonRequested bool) string {
	payload := fingerprintPayload{
		Messages:      messages,
		Model:         model,
		Temperature:   temperature,
		JSONRequested: jsonRequested,
	}

	// Marshal cannot fail for these types.
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
