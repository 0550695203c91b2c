package chaintest

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wormhole-demo/bridgeops/internal/contracts"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// MessageLog builds a LogMessagePublished log emitted by core.
func MessageLog(core, sender common.Address, sequence uint64, nonce uint32, payload []byte, consistencyLevel uint8) *types.Log {
	if payload == nil {
		payload = []byte{}
	}
	ev := contracts.Core.Events["LogMessagePublished"]
	data, err := ev.Inputs.NonIndexed().Pack(sequence, nonce, payload, consistencyLevel)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: core,
		Topics:  []common.Hash{contracts.MessagePublishedTopic, common.BytesToHash(sender.Bytes())},
		Data:    data,
	}
}

// Core is a wormhole core fixture. It hands out per-emitter sequences and
// accepts contract upgrade VAAs.
type Core struct {
	Address   common.Address
	sequences map[common.Address]uint64
	consumed  map[common.Hash]bool
	Upgrades  []*vaa.VAA
}

func NewCore(addr common.Address) *Core {
	return &Core{
		Address:   addr,
		sequences: make(map[common.Address]uint64),
		consumed:  make(map[common.Hash]bool),
	}
}

// Publish assigns the next sequence of sender and returns the message log.
func (c *Core) Publish(sender common.Address, nonce uint32, payload []byte, consistencyLevel uint8) (*types.Log, uint64) {
	seq := c.sequences[sender]
	c.sequences[sender] = seq + 1
	return MessageLog(c.Address, sender, seq, nonce, payload, consistencyLevel), seq
}

// NextSequence returns the sequence the next message of sender will get.
func (c *Core) NextSequence(sender common.Address) uint64 {
	return c.sequences[sender]
}

func (c *Core) Transact(_ common.Address, data []byte) ([]*types.Log, error) {
	v, err := c.check(data)
	if err != nil {
		return nil, err
	}
	c.consumed[v.Hash] = true
	c.Upgrades = append(c.Upgrades, v)
	return nil, nil
}

func (c *Core) Call(_ common.Address, data []byte) ([]byte, error) {
	if len(data) >= 4 {
		if m, err := contracts.Core.MethodById(data[:4]); err == nil && m.Name == "messageFee" {
			return m.Outputs.Pack(common.Big0)
		}
	}
	_, err := c.check(data)
	return nil, err
}

func (c *Core) check(data []byte) (*vaa.VAA, error) {
	raw, err := unpackVAA(contracts.Core, "submitContractUpgrade", data)
	if err != nil {
		return nil, err
	}
	v, err := vaa.Decode(raw)
	if err != nil {
		return nil, Revertf("invalid VM")
	}
	if c.consumed[v.Hash] {
		return nil, Revertf("governance action already consumed")
	}
	return v, nil
}

func unpackVAA(parsed abi.ABI, name string, data []byte) ([]byte, error) {
	m, args, err := decodeCall(parsed, data)
	if err != nil {
		return nil, err
	}
	if m.Name != name {
		return nil, Revertf("unexpected call %s", m.Name)
	}
	return args[0].([]byte), nil
}

// decodeCall resolves the method selector and unpacks its arguments.
func decodeCall(parsed abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, Revertf("missing selector")
	}
	m, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, Revertf("unknown selector %x", data[:4])
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, Revertf("invalid calldata for %s", m.Name)
	}
	return m, args, nil
}
