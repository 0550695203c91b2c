package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal"
	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/governance"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// actionBuilder reads the flags of a proposal command into its action.
type actionBuilder func(cmd *cobra.Command, cfg *config.Config) (governance.Action, error)

// proposalCommand creates a command that proposes the action built from its
// flags. With executable set it also gets an --execute flag that votes and
// executes with the proposer account.
func proposalCommand(use, short string, executable bool, build actionBuilder) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, args)
			if err != nil {
				return err
			}
			defer s.Close()

			action, err := build(cmd, s.cfg)
			if err != nil {
				return err
			}
			orchestrator, err := s.orchestrator()
			if err != nil {
				return err
			}

			execute := false
			if executable {
				execute, _ = cmd.Flags().GetBool("execute")
			}

			ctx, cancel := signalContext(s.logger)
			defer cancel()

			out, err := orchestrator.Propose(ctx, action, execute)
			if out != nil {
				logOutcome(s.logger, out)
			}
			if err != nil {
				return err
			}
			printVAA(cmd, out.VAA)
			return nil
		},
	}
	if executable {
		c.Flags().Bool("execute", false, "vote and execute with the proposer account (test setups with a quorum of one)")
	}
	return c
}

func logOutcome(logger *zap.Logger, out *internal.Outcome) {
	fields := []zap.Field{zap.String("txId", out.TxID.String())}
	if out.ExecuteReceipt != nil {
		fields = append(fields, zap.String("executeTxHash", out.ExecuteReceipt.TxHash.Hex()))
	}
	if out.Message != nil {
		fields = append(fields, zap.String("sequence", out.Message.Sequence))
	}
	logger.Info("Governance outcome", fields...)
}

func init() {
	registerChain := proposalCommand("governance-register-chain", "Propose registering a chain's bridge app on a target chain", true,
		func(cmd *cobra.Command, cfg *config.Config) (governance.Action, error) {
			target, err := chainIDFlag(cmd, "target-chain-id")
			if err != nil {
				return governance.Action{}, err
			}
			chainID, err := chainIDFlag(cmd, "chain-id")
			if err != nil {
				return governance.Action{}, err
			}
			app, _ := cmd.Flags().GetString("app")
			module, err := governance.ModuleForApp(app)
			if err != nil {
				return governance.Action{}, err
			}
			verifierType, err := requiredVerifier(cmd, "verifier-type")
			if err != nil {
				return governance.Action{}, err
			}
			bridge, err := cfg.BridgeApp(chainID, config.App(app))
			if err != nil {
				return governance.Action{}, err
			}
			verifier, err := cfg.Wormhole(target, verifierType)
			if err != nil {
				return governance.Action{}, err
			}
			return governance.RegisterChain(module, target, chainID, vaa.AddressFromEVM(bridge), vaa.AddressFromEVM(verifier)), nil
		})
	registerChain.Flags().String("target-chain-id", "", "wormhole chain id (or network name) of the target chain")
	registerChain.Flags().String("chain-id", "", "wormhole chain id (or network name) of the chain to be registered")
	registerChain.Flags().String("app", string(config.AppBridge), "bridge, nftbridge or multitokenbridge")
	registerChain.Flags().String("verifier-type", "", "wormhole contract on the target chain verifying messages of the registered chain (0 for WH_19, 1 for WH_ISK)")
	markRequired(registerChain, "target-chain-id", "chain-id", "verifier-type")

	upgradeBridge := proposalCommand("governance-upgrade-bridge", "Propose a bridge app upgrade", true,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			target, err := chainIDFlag(cmd, "target-chain-id")
			if err != nil {
				return governance.Action{}, err
			}
			app, _ := cmd.Flags().GetString("app")
			module, err := governance.ModuleForApp(app)
			if err != nil {
				return governance.Action{}, err
			}
			implementation, err := wordFlag(cmd, "implementation")
			if err != nil {
				return governance.Action{}, err
			}
			return governance.UpgradeBridge(module, target, implementation), nil
		})
	upgradeBridge.Flags().String("target-chain-id", "", "wormhole chain id of the target chain")
	upgradeBridge.Flags().String("app", string(config.AppBridge), "bridge or nftbridge")
	upgradeBridge.Flags().String("implementation", "", "address of the new implementation contract")
	markRequired(upgradeBridge, "target-chain-id", "implementation")

	createWrapped := proposalCommand("governance-create-wrapped", "Propose creating a wrapped token", true,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			vm, err := vaaFlag(cmd, "asset-meta-vm")
			if err != nil {
				return governance.Action{}, err
			}
			target, err := chainIDFlag(cmd, "target-chain-id")
			if err != nil {
				return governance.Action{}, err
			}
			name, _ := cmd.Flags().GetString("name")
			symbol, _ := cmd.Flags().GetString("symbol")
			return governance.CreateWrapped(vm, name, symbol, target), nil
		})
	createWrapped.Flags().String("asset-meta-vm", "", "asset meta VAA (base64 or 0x hex)")
	createWrapped.Flags().String("name", "", "name of the wrapped token")
	createWrapped.Flags().String("symbol", "", "symbol of the wrapped token")
	createWrapped.Flags().String("target-chain-id", "", "chain to create the wrapped token on")
	markRequired(createWrapped, "asset-meta-vm", "target-chain-id")

	createAdapter := proposalCommand("governance-create-adapter", "Propose creating a wrapped token adapter", true,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			vm, err := vaaFlag(cmd, "asset-meta-vm")
			if err != nil {
				return governance.Action{}, err
			}
			target, err := chainIDFlag(cmd, "target-chain-id")
			if err != nil {
				return governance.Action{}, err
			}
			token, err := wordFlag(cmd, "token-address")
			if err != nil {
				return governance.Action{}, err
			}
			return governance.CreateAdapter(vm, target, token), nil
		})
	createAdapter.Flags().String("asset-meta-vm", "", "asset meta VAA (base64 or 0x hex)")
	createAdapter.Flags().String("target-chain-id", "", "chain to create the adapter on")
	createAdapter.Flags().String("token-address", "", "token wrapped by the adapter on the target chain")
	markRequired(createAdapter, "asset-meta-vm", "target-chain-id", "token-address")

	updateServiceFee := proposalCommand("governance-update-service-fee", "Propose a new bridge service fee policy", true,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			target, err := chainIDFlag(cmd, "target-chain-id")
			if err != nil {
				return governance.Action{}, err
			}
			policy, err := wordFlag(cmd, "new-policy")
			if err != nil {
				return governance.Action{}, err
			}
			return governance.UpdateServiceFeePolicy(target, policy), nil
		})
	updateServiceFee.Flags().String("target-chain-id", "", "chain of the bridge to update")
	updateServiceFee.Flags().String("new-policy", "", "address of the new policy contract")
	markRequired(updateServiceFee, "target-chain-id", "new-policy")

	setVerifier := proposalCommand("governance-set-verifier", "Propose the wormhole contract verifying messages of an emitter chain", true,
		func(cmd *cobra.Command, cfg *config.Config) (governance.Action, error) {
			emitterChain, err := chainIDFlag(cmd, "emitter-chain")
			if err != nil {
				return governance.Action{}, err
			}
			verifierType, err := requiredVerifier(cmd, "type")
			if err != nil {
				return governance.Action{}, err
			}
			verifier, err := cfg.Wormhole(cfg.GovernanceChainID, verifierType)
			if err != nil {
				return governance.Action{}, err
			}
			return governance.SetVerifier(emitterChain, verifier), nil
		})
	setVerifier.Flags().String("emitter-chain", "", "emitter chain id")
	setVerifier.Flags().String("type", "", "0 for WH_19, 1 for WH_ISK")
	markRequired(setVerifier, "emitter-chain", "type")

	addVoter := proposalCommand("add-voter", "Propose adding a governance voter", false,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			voter, err := addressFlag(cmd, "new-voter")
			return governance.AddVoter(voter), err
		})
	addVoter.Flags().String("new-voter", "", "address of the voter to add")
	markRequired(addVoter, "new-voter")

	removeVoter := proposalCommand("remove-voter", "Propose removing a governance voter", false,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			voter, err := addressFlag(cmd, "target")
			return governance.RemoveVoter(voter), err
		})
	removeVoter.Flags().String("target", "", "address of the voter to remove")
	markRequired(removeVoter, "target")

	addProposer := proposalCommand("add-proposer", "Propose adding a governance proposer", false,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			proposer, err := addressFlag(cmd, "new-proposer")
			return governance.AddProposer(proposer), err
		})
	addProposer.Flags().String("new-proposer", "", "address of the proposer to add")
	markRequired(addProposer, "new-proposer")

	removeProposer := proposalCommand("remove-proposer", "Propose removing a governance proposer", false,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			proposer, err := addressFlag(cmd, "target")
			return governance.RemoveProposer(proposer), err
		})
	removeProposer.Flags().String("target", "", "address of the proposer to remove")
	markRequired(removeProposer, "target")

	changeQuorum := proposalCommand("change-quorum-size", "Propose a new quorum size", false,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			required, _ := cmd.Flags().GetUint64("required")
			if required == 0 {
				return governance.Action{}, fmt.Errorf("%w: --required must be positive", config.ErrInvalidConfiguration)
			}
			return governance.ChangeQuorumSize(required), nil
		})
	changeQuorum.Flags().Uint64("required", 0, "number of votes forming a quorum")
	markRequired(changeQuorum, "required")

	checkpoint := proposalCommand("checkpoint-txid", "Propose invalidating every proposal before a transaction id", false,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			s, _ := cmd.Flags().GetString("tx-id")
			id, err := governance.ParseTxID(s)
			return governance.Checkpoint(id), err
		})
	checkpoint.Flags().String("tx-id", "", "first transaction id that stays valid")
	markRequired(checkpoint, "tx-id")

	consistencyLevel := proposalCommand("set-governance-consistency-level", "Propose the consistency level of governance messages", false,
		func(cmd *cobra.Command, _ *config.Config) (governance.Action, error) {
			level, _ := cmd.Flags().GetUint8("consistency-level")
			return governance.SetConsistencyLevel(level), nil
		})
	consistencyLevel.Flags().Uint8("consistency-level", 0, "new consistency level")
	markRequired(consistencyLevel, "consistency-level")

	rootCmd.AddCommand(
		registerChain, upgradeBridge, createWrapped, createAdapter, updateServiceFee, setVerifier,
		addVoter, removeVoter, addProposer, removeProposer, changeQuorum, checkpoint, consistencyLevel,
		statusCmd, voteCmd, executeCmd,
	)

	voteCmd.Flags().String("tx-id", "", "transaction id of the proposal")
	markRequired(voteCmd, "tx-id")

	executeCmd.Flags().String("tx-id", "", "transaction id of the proposal")
	executeCmd.Flags().String("verifier-type", "", "when set the execution is treated as publishing a wormhole message and its VAA is fetched (0 for WH_19, 1 for WH_ISK)")
	markRequired(executeCmd, "tx-id")
}

var statusCmd = &cobra.Command{
	Use:   "governance-status",
	Short: "Show the governance multisig configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		address, err := s.cfg.Governance()
		if err != nil {
			return err
		}
		if err := s.connect(false); err != nil {
			return err
		}
		multisig := governance.NewMultisig(s.logger, s.client, address, s.cfg.Confirmations)

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		status, err := multisig.Status(ctx)
		if err != nil {
			return err
		}

		voters := make([]string, len(status.Voters))
		for i, v := range status.Voters {
			voters[i] = v.Hex()
		}
		proposers := make([]string, len(status.Proposers))
		for i, p := range status.Proposers {
			proposers[i] = p.Hex()
		}
		return printJSON(cmd, map[string]interface{}{
			"governance":              address.Hex(),
			"voters":                  voters,
			"proposers":               proposers,
			"quorumSize":              status.QuorumSize.String(),
			"consistencyLevel":        status.ConsistencyLevel,
			"validTransactionIdStart": status.ValidTransactionIDStart.String(),
		})
	},
}

var voteCmd = &cobra.Command{
	Use:   "governance-vote",
	Short: "Vote for a proposal",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		txID, _ := cmd.Flags().GetString("tx-id")
		id, err := governance.ParseTxID(txID)
		if err != nil {
			return err
		}
		orchestrator, err := s.orchestrator()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		_, err = orchestrator.Vote(ctx, id)
		return err
	},
}

var executeCmd = &cobra.Command{
	Use:   "governance-execute",
	Short: "Execute a proposal that reached quorum",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		txID, _ := cmd.Flags().GetString("tx-id")
		id, err := governance.ParseTxID(txID)
		if err != nil {
			return err
		}
		verifier, err := optionalVerifier(cmd, "verifier-type")
		if err != nil {
			return err
		}
		orchestrator, err := s.orchestrator()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		out, err := orchestrator.ExecuteAndFetch(ctx, id, verifier)
		if out != nil {
			logOutcome(s.logger, out)
		}
		if err != nil {
			return err
		}
		printVAA(cmd, out.VAA)
		return nil
	},
}

func markRequired(c *cobra.Command, flags ...string) {
	for _, f := range flags {
		_ = c.MarkFlagRequired(f)
	}
}
