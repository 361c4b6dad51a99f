// Package domain provides the identifiers shared by every ledger component.
package domain

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "ecertify/pkg/domain-errors"
)

// ActorID is a 20-byte account address. The zero value means "none".
type ActorID [20]byte

// ZeroActor is the "none" address returned for unlinked students.
var ZeroActor ActorID

// ParseActorID parses a 0x-prefixed hex address. All-lowercase and all-uppercase
// inputs are accepted as-is; a mixed-case input must carry a valid EIP-55 checksum.
// Use at trust boundaries (handlers, API inputs).
func ParseActorID(s string) (ActorID, error) {
	var id ActorID
	s = strings.TrimSpace(s)
	if s == "" {
		return id, dErrors.New(dErrors.CodeInvalidInput, "actor address cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return id, dErrors.New(dErrors.CodeInvalidInput, "actor address must be 0x-prefixed")
	}
	body := s[2:]
	if len(body) != 40 {
		return id, dErrors.New(dErrors.CodeInvalidInput, "actor address must be 20 bytes")
	}
	if _, err := hex.Decode(id[:], []byte(body)); err != nil {
		return ActorID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "actor address is not hex")
	}
	if isMixedCase(body) && checksumHex(id) != body {
		return ActorID{}, dErrors.New(dErrors.CodeInvalidInput, "actor address has an invalid checksum")
	}
	return id, nil
}

// MustActorID panics on invalid input. Intended for fixtures and constants.
func MustActorID(s string) ActorID {
	id, err := ParseActorID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String renders the checksummed 0x form.
func (id ActorID) String() string {
	return "0x" + checksumHex(id)
}

// IsZero reports whether the id is the "none" address.
func (id ActorID) IsZero() bool {
	return id == ZeroActor
}

// MarshalText implements encoding.TextMarshaler so actors render as addresses in JSON.
func (id ActorID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ActorID) UnmarshalText(b []byte) error {
	parsed, err := ParseActorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer. Addresses are stored as 20 raw bytes.
func (id ActorID) Value() (driver.Value, error) {
	return id[:], nil
}

// Scan implements sql.Scanner.
func (id *ActorID) Scan(src any) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan actor: unexpected type %T", src)
	}
	if len(b) != len(id) {
		return fmt.Errorf("scan actor: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return nil
}

func checksumHex(id ActorID) string {
	lower := hex.EncodeToString(id[:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
