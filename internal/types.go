package internal

import (
	"bytes"
	"fmt"

	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// VAAData is a VAA received from the spy together with its raw bytes.
type VAAData struct {
	VAA      *vaa.VAA // The parsed VAA
	RawBytes []byte   // Raw VAA bytes
	ChainID  uint16   // Source chain ID
	Emitter  vaa.Address
	Sequence uint64 // VAA sequence number
}

// NewVAAData parses raw without checking signature order; the destination
// contract does the verification. raw must re-marshal byte for byte through
// the wormhole sdk.
func NewVAAData(raw []byte) (*VAAData, error) {
	v, err := vaa.DecodePermissive(raw)
	if err != nil {
		return nil, err
	}
	encoded, err := v.ToSDK().Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal VAA %s with the wormhole sdk: %v", v.Hash.Hex(), err)
	}
	if !bytes.Equal(encoded, raw) {
		return nil, fmt.Errorf("%w: VAA %s does not round-trip through the wormhole sdk", vaa.ErrMalformedVAA, v.Hash.Hex())
	}
	return &VAAData{
		VAA:      v,
		RawBytes: raw,
		ChainID:  v.EmitterChainID,
		Emitter:  v.EmitterAddress,
		Sequence: v.Sequence,
	}, nil
}

// Matches reports whether d is the message (chainID, emitter, sequence).
func (d *VAAData) Matches(chainID uint16, emitter vaa.Address, sequence uint64) bool {
	return d.ChainID == chainID && d.Emitter == emitter && d.Sequence == sequence
}
