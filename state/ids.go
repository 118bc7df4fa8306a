package state

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// idHexLength is the length of the hex part of EC2 style ids.
const idHexLength = 17

// NewID returns a fresh id for kind, unique across every table in the store.
func (s *Store) NewID(kind Kind) string {
	prefix := kind.Spec().Prefix
	if prefix == "" {
		panic("state: kind " + string(kind) + " has no id prefix")
	}
	for {
		id := prefix + "-" + randomHex(idHexLength)
		if !s.idTaken(id) {
			return id
		}
	}
}

func (s *Store) idTaken(id string) bool {
	for _, t := range s.tables {
		if t.Has(id) {
			return true
		}
	}
	return false
}

// randomHex returns n lowercase hex characters drawn from uuid entropy. The version
// and variant nibbles of each uuid are fixed, so they are skipped.
func randomHex(n int) string {
	const (
		versionNibble = 12
		variantNibble = 16
	)
	out := make([]byte, 0, n)
	for len(out) < n {
		u := uuid.New()
		digits := hex.EncodeToString(u[:])
		for i := 0; i < len(digits) && len(out) < n; i++ {
			if i == versionNibble || i == variantNibble {
				continue
			}
			out = append(out, digits[i])
		}
	}
	return string(out)
}

// NewRequestID returns an AWS style request id.
func NewRequestID() string {
	return uuid.NewString()
}
