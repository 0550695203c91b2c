package vaa

import (
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// ToSDK converts v to the wormhole sdk representation, e.g. for
// re-marshalling or for code that already speaks sdk types.
func (v *VAA) ToSDK() *sdkvaa.VAA {
	sigs := make([]*sdkvaa.Signature, len(v.Signatures))
	for i, s := range v.Signatures {
		var raw [65]byte
		copy(raw[0:32], s.R[:])
		copy(raw[32:64], s.S[:])
		raw[64] = s.V - recoveryOffset
		sigs[i] = &sdkvaa.Signature{Index: s.GuardianIndex, Signature: raw}
	}

	return &sdkvaa.VAA{
		Version:          v.Version,
		GuardianSetIndex: v.GuardianSetIndex,
		Signatures:       sigs,
		Timestamp:        v.Time(),
		Nonce:            v.Nonce,
		Sequence:         v.Sequence,
		ConsistencyLevel: v.ConsistencyLevel,
		EmitterChain:     sdkvaa.ChainID(v.EmitterChainID),
		EmitterAddress:   sdkvaa.Address(v.EmitterAddress),
		Payload:          v.Payload,
	}
}

// ChainName returns the wormhole name of a chain id for log output.
func ChainName(id uint16) string {
	return sdkvaa.ChainID(id).String()
}
