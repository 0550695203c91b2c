// Package contracts holds the ABIs of the on-chain contracts driven by bridgeops.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// MessagePublishedTopic is topic0 of the wormhole core LogMessagePublished event.
var MessagePublishedTopic = common.HexToHash("0x6eb224fb001ed210e379b335e35efe88672a8ce935d981a6896b27ffdf52a3b2")

var (
	Governance = mustParse(governanceABI)
	Bridge     = mustParse(bridgeABI)
	Core       = mustParse(coreABI)
)

var (
	SubmissionTopic   = Governance.Events["Submission"].ID
	ConfirmationTopic = Governance.Events["Confirmation"].ID
	ExecutionTopic    = Governance.Events["Execution"].ID
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// governance multisig: proposal entry points, voting, admin proposals and views
const governanceABI = `[
  {"type":"event","name":"Submission","anonymous":false,"inputs":[
    {"indexed":true,"name":"transactionId","type":"uint256"}]},
  {"type":"event","name":"Confirmation","anonymous":false,"inputs":[
    {"indexed":true,"name":"sender","type":"address"},
    {"indexed":true,"name":"transactionId","type":"uint256"}]},
  {"type":"event","name":"Execution","anonymous":false,"inputs":[
    {"indexed":true,"name":"transactionId","type":"uint256"}]},
  {"type":"event","name":"ExecutionFailure","anonymous":false,"inputs":[
    {"indexed":true,"name":"transactionId","type":"uint256"}]},

  {"type":"function","name":"registerChain","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"module","type":"string"},
    {"name":"targetChainId","type":"uint16"},
    {"name":"chainId","type":"uint16"},
    {"name":"bridgeAddress","type":"bytes32"},
    {"name":"verifierAddress","type":"bytes32"}]},
  {"type":"function","name":"upgradeBridgeContract","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"module","type":"string"},
    {"name":"targetChainId","type":"uint16"},
    {"name":"implementation","type":"bytes32"}]},
  {"type":"function","name":"createWrapped","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"assetMetaVm","type":"bytes"},
    {"name":"name","type":"string"},
    {"name":"symbol","type":"string"},
    {"name":"targetChainId","type":"uint16"}]},
  {"type":"function","name":"createAdapter","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"assetMetaVm","type":"bytes"},
    {"name":"targetChainId","type":"uint16"},
    {"name":"tokenAddress","type":"bytes32"}]},
  {"type":"function","name":"updateServiceFeePolicy","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"module","type":"string"},
    {"name":"targetChainId","type":"uint16"},
    {"name":"newPolicy","type":"bytes32"}]},
  {"type":"function","name":"setVerifier","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"emitterChain","type":"uint16"},
    {"name":"verifier","type":"address"}]},
  {"type":"function","name":"setConsistencyLevel","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"newConsistencyLevel","type":"uint8"}]},

  {"type":"function","name":"confirmTransaction","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"transactionId","type":"uint256"}]},
  {"type":"function","name":"executeTransaction","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"transactionId","type":"uint256"}]},

  {"type":"function","name":"proposeAddVoter","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"voter","type":"address"}]},
  {"type":"function","name":"proposeRemoveVoter","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"voter","type":"address"}]},
  {"type":"function","name":"proposeAddProposer","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"proposer","type":"address"}]},
  {"type":"function","name":"proposeRemoveProposer","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"proposer","type":"address"}]},
  {"type":"function","name":"proposeChangeQuorumSize","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"quorumSize","type":"uint256"}]},
  {"type":"function","name":"proposeCheckpoint","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"transactionId","type":"uint256"}]},

  {"type":"function","name":"getVoters","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"address[]"}]},
  {"type":"function","name":"getProposers","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"address[]"}]},
  {"type":"function","name":"required","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint256"}]},
  {"type":"function","name":"consistencyLevel","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint8"}]},
  {"type":"function","name":"validTransactionIdStart","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint256"}]}
]`

// token/nft/multi-token bridge apps
const bridgeABI = `[
  {"type":"function","name":"registerChain","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"encodedVM","type":"bytes"}]},
  {"type":"function","name":"upgrade","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"encodedVM","type":"bytes"}]},
  {"type":"function","name":"completeTransfer","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"encodedVM","type":"bytes"}]},
  {"type":"function","name":"completeRemoteAsset","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"encodedVM","type":"bytes"}]},
  {"type":"function","name":"updateServiceFeePolicy","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"encodedVM","type":"bytes"}]},

  {"type":"function","name":"attestToken","stateMutability":"payable","inputs":[
    {"name":"tokenAddress","type":"address"},
    {"name":"nonce","type":"uint32"}],"outputs":[
    {"name":"sequence","type":"uint64"}]},
  {"type":"function","name":"createWrapped","stateMutability":"payable","inputs":[
    {"name":"encodedVm","type":"bytes"},
    {"name":"nonce","type":"uint32"}],"outputs":[
    {"name":"sequence","type":"uint64"}]},
  {"type":"function","name":"createAdapter","stateMutability":"payable","inputs":[
    {"name":"encodedVm","type":"bytes"},
    {"name":"initialAmount","type":"uint256"},
    {"name":"nonce","type":"uint32"}],"outputs":[
    {"name":"sequence","type":"uint64"}]}
]`

// wormhole core
const coreABI = `[
  {"type":"event","name":"LogMessagePublished","anonymous":false,"inputs":[
    {"indexed":true,"name":"sender","type":"address"},
    {"indexed":false,"name":"sequence","type":"uint64"},
    {"indexed":false,"name":"nonce","type":"uint32"},
    {"indexed":false,"name":"payload","type":"bytes"},
    {"indexed":false,"name":"consistencyLevel","type":"uint8"}]},
  {"type":"function","name":"submitContractUpgrade","stateMutability":"nonpayable","outputs":[],"inputs":[
    {"name":"_vm","type":"bytes"}]},
  {"type":"function","name":"messageFee","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"uint256"}]}
]`

// VAAMethods lists the contract methods that take a single signed VAA.
var VAAMethods = map[string]abi.ABI{
	"registerChain":          Bridge,
	"upgrade":                Bridge,
	"completeTransfer":       Bridge,
	"completeRemoteAsset":    Bridge,
	"updateServiceFeePolicy": Bridge,
	"submitContractUpgrade":  Core,
}
