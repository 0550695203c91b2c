// Package sequence extracts the wormhole message sequence from transaction logs.
package sequence

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wormhole-demo/bridgeops/internal/chain"
	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// MessagePublished is a decoded LogMessagePublished event.
type MessagePublished struct {
	// Sequence in decimal.
	Sequence         string
	Sender           vaa.Address
	Nonce            uint32
	Payload          []byte
	ConsistencyLevel uint8
	// Core is the wormhole core contract that emitted the log.
	Core common.Address
}

type messageData struct {
	Sequence         uint64
	Nonce            uint32
	Payload          []byte
	ConsistencyLevel uint8
}

// Extract decodes the first message-published log. Multiple messages in one
// transaction are legal but only the first is returned.
func Extract(logs []*types.Log) (*MessagePublished, error) {
	l, err := chain.FirstLog(logs, contracts.MessagePublishedTopic)
	if err != nil {
		return nil, fmt.Errorf("message published: %w", err)
	}
	return Decode(l)
}

// ExtractAll decodes every message-published log in order.
func ExtractAll(logs []*types.Log) ([]*MessagePublished, error) {
	var out []*MessagePublished
	for _, l := range chain.FindLogs(logs, contracts.MessagePublishedTopic) {
		msg, err := Decode(l)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Decode decodes a single message-published log.
func Decode(l *types.Log) (*MessagePublished, error) {
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("message published log %d has %d topics, want 2", l.Index, len(l.Topics))
	}

	var data messageData
	if err := contracts.Core.UnpackIntoInterface(&data, "LogMessagePublished", l.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack message published log %d: %w", l.Index, err)
	}

	return &MessagePublished{
		Sequence:         strconv.FormatUint(data.Sequence, 10),
		Sender:           vaa.Address(l.Topics[1]),
		Nonce:            data.Nonce,
		Payload:          data.Payload,
		ConsistencyLevel: data.ConsistencyLevel,
		Core:             l.Address,
	}, nil
}
