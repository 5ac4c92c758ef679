// Package hashchain implements the canonical encoding and hash linkage of
// audit ledger entries. Every function here is pure: two processes given
// the same inputs produce byte-identical output, which is what makes the
// stored chain verifiable after the fact.
package hashchain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/traceboard/traceboard/internal/models"
)

// canonicalVersion prefixes every canonical encoding so the formula can be
// evolved without invalidating existing chains.
const canonicalVersion = "v1"

// Canonicalize serializes the loggable fields of an entry plus its
// writer-assigned timestamp into a deterministic byte sequence. Fields are
// emitted in a fixed order as length-prefixed segments, so no field value
// (including ones containing the separator) can make two distinct entries
// encode identically. The details payload is encoded as canonical JSON
// with recursively sorted keys.
func Canonicalize(f models.AuditFields, createdAt time.Time) ([]byte, error) {
	details, err := canonicalJSON(f.Details)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCanonicalization, err)
	}

	var b bytes.Buffer
	b.WriteString(canonicalVersion)

	segments := []string{
		derefOrEmpty(f.WorkspaceID),
		derefOrEmpty(f.ActorUserID),
		f.Action,
		f.ResourceType,
		f.ResourceID,
		string(details),
		f.IPAddress,
		f.UserAgent,
		// UnixMicro matches timestamptz precision, so the stored value
		// round-trips exactly for verification.
		strconv.FormatInt(createdAt.UnixMicro(), 10),
	}
	for _, seg := range segments {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(seg)))
		b.WriteByte(':')
		b.WriteString(seg)
	}

	return b.Bytes(), nil
}

// NormalizeDetails rewrites a details payload into the form a JSON round
// trip produces, numbers included (an int64 becomes the float64 its JSON
// text decodes to). Writers hash and store this form so that recomputing
// the hash from the stored jsonb later yields the same bytes; hashing the
// caller's original Go values would break verification for any value that
// does not survive the round trip.
func NormalizeDetails(details map[string]any) (map[string]any, error) {
	if details == nil {
		return nil, nil
	}

	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCanonicalization, err)
	}

	var normalized map[string]any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCanonicalization, err)
	}

	return normalized, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// canonicalJSON encodes a details payload as JSON with map keys sorted at
// every nesting level. Returns an empty slice for a nil payload.
func canonicalJSON(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	var b bytes.Buffer
	if err := writeCanonicalValue(&b, v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// writeCanonicalValue writes one JSON value. Maps are written with sorted
// keys; everything else defers to encoding/json, whose output for scalars
// is deterministic and locale-independent.
func writeCanonicalValue(b *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(keyJSON)
			b.WriteByte(':')
			if err := writeCanonicalValue(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil

	case []any:
		b.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonicalValue(b, elem); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil

	default:
		data, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(data)
		return nil
	}
}
