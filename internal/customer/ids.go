// Package customer models the customer identity a personalization belongs to.
package customer

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

// IDs maps an identifier kind (e.g. "registered", "cookie") to its value.
type IDs map[string]string

// Fingerprint is a 64-bit identity digest derived from the canonical form of IDs.
// Two IDs with the same key/value pairs produce the same Fingerprint regardless
// of map iteration order.
type Fingerprint uint64

// Clone returns an independent copy. A nil receiver yields nil.
func (ids IDs) Clone() IDs {
	if ids == nil {
		return nil
	}
	out := make(IDs, len(ids))
	for k, v := range ids {
		out[k] = v
	}
	return out
}

// Equal reports whether both maps hold the same pairs. Nil and empty are equal.
func (ids IDs) Equal(other IDs) bool {
	if len(ids) != len(other) {
		return false
	}
	for k, v := range ids {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no identifier is known.
func (ids IDs) IsEmpty() bool {
	return len(ids) == 0
}

// Fingerprint hashes the sorted "key=value" pairs with xxh3.
func (ids IDs) Fingerprint() Fingerprint {
	return Fingerprint(xxh3.HashString(ids.canonical()))
}

func (ids IDs) canonical() string {
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(ids[k])
	}
	return b.String()
}

// MarshalJSON always emits an object (never null) so it can be sent as-is
// in personalization requests.
func (ids IDs) MarshalJSON() ([]byte, error) {
	if ids == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(ids))
}

// Hex returns the lowercase hex encoding of the fingerprint.
func (f Fingerprint) Hex() string {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[7-i] = byte(f >> (8 * i))
	}
	return hex.EncodeToString(b[:])
}

// String implements fmt.Stringer.
func (f Fingerprint) String() string {
	return f.Hex()
}
