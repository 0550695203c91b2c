package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// Bridge is a token bridge fixture. Message producing calls publish through
// Core; VAA consuming calls reject malformed and replayed VAAs.
type Bridge struct {
	Address          common.Address
	Core             *Core
	ConsistencyLevel uint8
	// Consumed lists accepted VAAs per method in arrival order.
	Consumed map[string][]*vaa.VAA

	seen map[common.Hash]bool
}

func NewBridge(addr common.Address, core *Core) *Bridge {
	return &Bridge{
		Address:          addr,
		Core:             core,
		ConsistencyLevel: 15,
		Consumed:         make(map[string][]*vaa.VAA),
		seen:             make(map[common.Hash]bool),
	}
}

func (b *Bridge) Transact(_ common.Address, data []byte) ([]*types.Log, error) {
	return b.run(data, true)
}

func (b *Bridge) Call(_ common.Address, data []byte) ([]byte, error) {
	_, err := b.run(data, false)
	return nil, err
}

func (b *Bridge) run(data []byte, commit bool) ([]*types.Log, error) {
	method, args, err := decodeCall(contracts.Bridge, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "attestToken":
		token, nonce := args[0].(common.Address), args[1].(uint32)
		if token == (common.Address{}) {
			return nil, Revertf("invalid token")
		}
		if !commit {
			return nil, nil
		}
		return b.publish(nonce, common.LeftPadBytes(token.Bytes(), 32)), nil

	case "createWrapped":
		v, err := decodeVM(args[0].([]byte))
		if err != nil {
			return nil, err
		}
		if !commit {
			return nil, nil
		}
		return b.publish(args[1].(uint32), v.Hash.Bytes()), nil

	case "createAdapter":
		v, err := decodeVM(args[0].([]byte))
		if err != nil {
			return nil, err
		}
		amount := args[1].(*big.Int)
		if amount.Sign() < 0 {
			return nil, Revertf("negative amount")
		}
		if !commit {
			return nil, nil
		}
		payload := append(v.Hash.Bytes(), common.LeftPadBytes(amount.Bytes(), 32)...)
		return b.publish(args[2].(uint32), payload), nil
	}

	// registerChain, upgrade, completeTransfer, completeRemoteAsset, updateServiceFeePolicy
	v, err := decodeVM(args[0].([]byte))
	if err != nil {
		return nil, err
	}
	if b.seen[v.Hash] {
		return nil, Revertf("%s: VAA already consumed", method.Name)
	}
	if !commit {
		return nil, nil
	}
	b.seen[v.Hash] = true
	b.Consumed[method.Name] = append(b.Consumed[method.Name], v)
	return nil, nil
}

func (b *Bridge) publish(nonce uint32, payload []byte) []*types.Log {
	l, _ := b.Core.Publish(b.Address, nonce, payload, b.ConsistencyLevel)
	return []*types.Log{l}
}

func decodeVM(raw []byte) (*vaa.VAA, error) {
	v, err := vaa.Decode(raw)
	if err != nil {
		return nil, Revertf("invalid VM")
	}
	return v, nil
}
