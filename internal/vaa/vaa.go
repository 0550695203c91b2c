// Package vaa decodes and encodes guardian-signed Verified Action Approvals.
//
// Wire layout (big-endian, no padding):
//
//	0      version            1 byte
//	1-4    guardian set index 4 bytes
//	5      signature count    1 byte
//	6+     signatures         66 bytes each (index, r, s, v)
//	body   timestamp 4, nonce 4, emitter chain 2, emitter address 32,
//	       sequence 8, consistency level 1, payload (rest)
package vaa

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address is a 32-byte emitter address, left-padded to full word width.
type Address [32]byte

// Hex returns the 0x-prefixed lowercase hex form.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// String returns the unprefixed hex form used in guardian URLs.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// AddressFromEVM left-pads a 20-byte account address.
func AddressFromEVM(a common.Address) Address {
	var out Address
	copy(out[12:], a.Bytes())
	return out
}

// ParseAddress accepts a 20-byte or 32-byte hex address, with or without 0x,
// and left-pads it to 32 bytes.
func ParseAddress(s string) (Address, error) {
	var out Address
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != 20 && len(b) != 32 {
		return out, fmt.Errorf("invalid address %q: %d bytes", s, len(b))
	}
	copy(out[32-len(b):], b)
	return out, nil
}

// Signature is a single guardian signature over the VAA hash.
// V holds the normalized recovery id (raw wire value + 27).
type Signature struct {
	GuardianIndex uint8
	R             [32]byte
	S             [32]byte
	V             uint8
}

type VAA struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []Signature

	Timestamp        uint32
	Nonce            uint32
	EmitterChainID   uint16
	EmitterAddress   Address
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte

	// Hash is keccak256(keccak256(body)). Set by Decode.
	Hash common.Hash
}

// Time returns the body timestamp as a time.Time.
func (v *VAA) Time() time.Time {
	return time.Unix(int64(v.Timestamp), 0).UTC()
}

// Body returns the signed body bytes rebuilt from the decoded fields.
func (v *VAA) Body() []byte {
	body := make([]byte, 0, bodyFixedLen+len(v.Payload))
	return appendBody(body, v)
}

// SigningDigest recomputes the double hash from the body fields.
func (v *VAA) SigningDigest() common.Hash {
	return doubleHash(v.Body())
}

func doubleHash(body []byte) common.Hash {
	return crypto.Keccak256Hash(crypto.Keccak256(body))
}
