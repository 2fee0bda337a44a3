package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Key derives a stable cache key from a route and its query parameters.
// Parameter order does not matter; url.Values.Encode sorts by key.
func Key(route string, params url.Values) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(strings.Trim(route, "/ ")))
	if len(params) > 0 {
		sb.WriteByte('?')
		sb.WriteString(params.Encode())
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}
