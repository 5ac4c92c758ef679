package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/traceboard/traceboard/internal/models"
)

// GenesisHash is the previous_hash of the chain's first entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ComputeHash returns the hex-encoded SHA-256 digest of previousHash
// concatenated with the entry's canonical bytes. This is the record_hash
// formula for the whole ledger.
func ComputeHash(previousHash string, f models.AuditFields, createdAt time.Time) (string, error) {
	canonical, err := Canonicalize(f, createdAt)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CheckEntry recomputes the stored entry's hashes against its true
// predecessor and returns the broken links found, if any. previousHash is
// the predecessor's stored record_hash, or GenesisHash for the first entry.
func CheckEntry(e *models.AuditEntry, previousHash string) []models.BrokenLink {
	var breaks []models.BrokenLink

	if e.PreviousHash != previousHash {
		breaks = append(breaks, models.BrokenLink{
			EntryID:  e.ID,
			Field:    "previous_hash",
			Expected: previousHash,
			Actual:   e.PreviousHash,
		})
	}

	recomputed, err := ComputeHash(e.PreviousHash, e.Fields(), e.CreatedAt)
	if err != nil {
		// A stored entry that cannot be canonicalized is itself a break.
		recomputed = ""
	}
	if e.RecordHash != recomputed {
		breaks = append(breaks, models.BrokenLink{
			EntryID:  e.ID,
			Field:    "record_hash",
			Expected: recomputed,
			Actual:   e.RecordHash,
		})
	}

	return breaks
}
