package clients

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/wormhole-demo/bridgeops/internal/chain"
)

// ErrNoRevert is returned when a replayed call did not revert.
var ErrNoRevert = errors.New("call did not revert")

// DecodeRevert extracts the message of an ABI encoded Error(string).
func DecodeRevert(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty revert data")
	}
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return "", fmt.Errorf("unable to decode revert reason: %v", err)
	}
	return reason, nil
}

// RevertReason replays call at block and decodes why it reverts.
func RevertReason(ctx context.Context, c chain.Client, call chain.Call, block *big.Int) (string, error) {
	return RevertReasonFromResult(c.CallContract(ctx, call, block))
}

// RevertReasonFromResult decodes the outcome of a replayed call. Most nodes
// report the revert data on the JSON-RPC error; some return it as the result.
func RevertReasonFromResult(result []byte, callErr error) (string, error) {
	if callErr == nil {
		if reason, err := abi.UnpackRevert(result); err == nil {
			return reason, nil
		}
		return "", ErrNoRevert
	}

	var dataErr rpc.DataError
	if !errors.As(callErr, &dataErr) {
		return "", fmt.Errorf("call failed without revert data: %v", callErr)
	}
	encoded, ok := dataErr.ErrorData().(string)
	if !ok {
		return "", fmt.Errorf("unexpected revert data %T", dataErr.ErrorData())
	}
	data, err := hexutil.Decode(encoded)
	if err != nil {
		return "", fmt.Errorf("malformed revert data %q: %v", encoded, err)
	}
	return DecodeRevert(data)
}
