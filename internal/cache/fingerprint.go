package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/wanderhk/tourism-ai/internal/types"
)

// NormalizeQuery strips the parts of a free-form query that should not
// affect the cache key: letter case and whitespace runs.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Fingerprint builds a deterministic cache key from the request kind, the
// normalized query text and the structured parameters. Params are hashed
// via their JSON encoding; Go marshals map keys sorted, so equal parameter
// sets always produce equal keys.
func Fingerprint(kind types.RequestKind, query string, params any) string {
	h := sha256.New()
	h.Write([]byte(NormalizeQuery(query)))
	h.Write([]byte{0})
	if params != nil {
		if encoded, err := json.Marshal(params); err == nil {
			h.Write(encoded)
		}
	}
	return string(kind) + ":" + hex.EncodeToString(h.Sum(nil))
}
