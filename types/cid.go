package types

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
)

// cidLinkTag is the CBOR tag of an IPLD link
const cidLinkTag = 42

// CidLink returns the IPLD link encoding of c: the identity multibase prefix
// followed by the binary cid, under tag 42.
func CidLink(c cid.Cid) (cbor.Tag, error) {
	if !c.Defined() {
		return cbor.Tag{}, fmt.Errorf("cannot link an undefined cid")
	}

	return cbor.Tag{Number: cidLinkTag, Content: append([]byte{0x00}, c.Bytes()...)}, nil
}

// CidFromLink decodes a link produced by CidLink
func CidFromLink(tag cbor.Tag) (cid.Cid, error) {
	if tag.Number != cidLinkTag {
		return cid.Undef, fmt.Errorf("unexpected cbor tag %d for a cid link", tag.Number)
	}

	raw, ok := tag.Content.([]byte)
	if !ok || len(raw) < 2 || raw[0] != 0x00 {
		return cid.Undef, fmt.Errorf("malformed cid link")
	}

	return cid.Cast(raw[1:])
}
