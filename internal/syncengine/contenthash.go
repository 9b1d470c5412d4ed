package syncengine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// contentHash implements spec.md §4.10's deterministic-serialization rule:
// object keys sorted lexically at every nesting level, arrays retain order.
// encoding/json already sorts map[string]interface{} keys on Marshal, so
// round-tripping the payload through an untyped decode canonicalizes it for
// free; the hash is stable across any implementation using the same rule.
func contentHash(raw []byte) (string, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
