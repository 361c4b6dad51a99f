package domain

import (
	"strings"

	"github.com/ipfs/go-cid"

	dErrors "ecertify/pkg/domain-errors"
)

// ContentRef points at an off-ledger document. The ledger never stores the
// bytes and returns the reference exactly as the caller supplied it.
type ContentRef string

// ParseContentRef trims s and rejects an empty reference. With strict set the
// reference must also decode as a CID, optionally behind an ipfs:// scheme.
func ParseContentRef(s string, strict bool) (ContentRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "content reference cannot be empty")
	}
	if strict {
		if _, err := cid.Decode(strings.TrimPrefix(s, "ipfs://")); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "content reference is not a CID")
		}
	}
	return ContentRef(s), nil
}

func (r ContentRef) String() string { return string(r) }
