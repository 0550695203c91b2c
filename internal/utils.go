package internal

import (
	"fmt"

	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// token bridge payload ids
const (
	payloadTransfer            = 1
	payloadAssetMeta           = 2
	payloadTransferWithPayload = 3
)

// LogVAA dumps every field of v at debug level.
func LogVAA(logger *zap.Logger, v *vaa.VAA) {
	guardians := make([]uint8, len(v.Signatures))
	for i, s := range v.Signatures {
		guardians[i] = s.GuardianIndex
	}
	logger.Debug("VAA",
		zap.Uint8("version", v.Version),
		zap.Uint32("guardianSetIndex", v.GuardianSetIndex),
		zap.Int("signatures", len(v.Signatures)),
		zap.Any("guardianIndices", guardians),
		zap.Time("timestamp", v.Time()),
		zap.Uint32("nonce", v.Nonce),
		zap.Uint16("emitterChain", v.EmitterChainID),
		zap.String("emitterChainName", vaa.ChainName(v.EmitterChainID)),
		zap.String("emitterAddress", v.EmitterAddress.Hex()),
		zap.Uint64("sequence", v.Sequence),
		zap.Uint8("consistencyLevel", v.ConsistencyLevel),
		zap.String("hash", v.Hash.Hex()),
		zap.String("payload", fmt.Sprintf("0x%x", v.Payload)))
	parseAndLogPayload(logger, v.Payload)
}

// parseAndLogPayload logs the header of token bridge payloads at debug level.
func parseAndLogPayload(logger *zap.Logger, payload []byte) {
	if len(payload) == 0 {
		return
	}

	switch payload[0] {
	case payloadTransfer, payloadTransferWithPayload:
		hdr, err := sdkvaa.DecodeTransferPayloadHdr(payload)
		if err != nil {
			logger.Debug("Transfer payload too short", zap.Int("length", len(payload)), zap.Error(err))
			return
		}
		logger.Debug("Transfer payload",
			zap.Uint8("payloadId", hdr.Type),
			zap.String("amount", hdr.Amount.String()),
			zap.String("originAddress", hdr.OriginAddress.String()),
			zap.Stringer("originChain", hdr.OriginChain),
			zap.String("targetAddress", hdr.TargetAddress.String()),
			zap.Stringer("targetChain", hdr.TargetChain))
	case payloadAssetMeta:
		logger.Debug("Asset meta payload", zap.Int("length", len(payload)))
	default:
		logger.Debug("Unknown payload", zap.Uint8("payloadId", payload[0]), zap.Int("length", len(payload)))
	}
}
