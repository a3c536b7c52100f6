/**
 * @description
 * This file implements the signature scheme used by Creem's redirect-based
 * payment confirmations. The gateway signs the redirect query parameters with
 * a salted SHA-256 over a "key=value|key=value|...|salt=<apiKey>" string, and
 * we must reproduce that string byte-for-byte to verify it.
 *
 * @notes
 * - Parameter order is significant. Creem builds the canonical string in the
 *   order the parameters were produced; sorting the keys here would break
 *   verification against real gateway redirects.
 * - This is a separate mechanism from webhook verification, which is a plain
 *   HMAC-SHA256 over the raw request body (see internal/api).
 */
package creem

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Param is a single key/value pair in a signed parameter set. A slice of
// Params preserves the ordering the signature depends on.
type Param struct {
	Key   string
	Value string
}

// Sign computes the Creem signature for the given ordered parameters.
func Sign(params []Param, apiKey string) string {
	segments := make([]string, 0, len(params)+1)
	for _, p := range params {
		segments = append(segments, p.Key+"="+p.Value)
	}
	segments = append(segments, "salt="+apiKey)

	sum := sha256.Sum256([]byte(strings.Join(segments, "|")))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature over params and compares it to the supplied
// signature. Only the "signature" key is excluded before signing; a
// present-but-empty value is part of the canonical string (as "key="), so
// callers must drop null/absent keys before building the parameter list. It
// fails closed: any mismatch or malformed input yields false, never an error.
func Verify(params []Param, signature, apiKey string) bool {
	if signature == "" {
		return false
	}

	filtered := make([]Param, 0, len(params))
	for _, p := range params {
		if p.Key == "signature" {
			continue
		}
		filtered = append(filtered, p)
	}

	return Sign(filtered, apiKey) == signature
}
