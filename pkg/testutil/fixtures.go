package testutil

import (
	"encoding/binary"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"ecertify/pkg/domain"
)

// Actors provides deterministic addresses for tests. Students, institutes and
// third parties sit in separate ranges so failures are easy to read.
var Actors = struct {
	Alice    domain.ActorID
	Bob      domain.ActorID
	Carol    domain.ActorID
	MIT      domain.ActorID
	Harvard  domain.ActorID
	Stanford domain.ActorID
	Employer domain.ActorID
	Stranger domain.ActorID
}{
	Alice:    Actor(0xa1),
	Bob:      Actor(0xa2),
	Carol:    Actor(0xa3),
	MIT:      Actor(0xc1),
	Harvard:  Actor(0xc2),
	Stanford: Actor(0xc3),
	Employer: Actor(0xe1),
	Stranger: Actor(0xf1),
}

// Actor builds an address whose low bytes hold n.
func Actor(n uint64) domain.ActorID {
	var id domain.ActorID
	binary.BigEndian.PutUint64(id[12:], n)
	return id
}

// ContentRef returns the CIDv1 (raw, sha2-256) of data, the form an upload
// client would compute for a document.
func ContentRef(data string) domain.ContentRef {
	sum, err := multihash.Sum([]byte(data), multihash.SHA2_256, -1)
	if err != nil {
		panic(err)
	}
	return domain.ContentRef(cid.NewCidV1(cid.Raw, sum).String())
}
