package cmd

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal"
	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/submitter"
)

// coreMethod is the single VAA method of the wormhole core contract.
const coreMethod = "submitContractUpgrade"

func init() {
	for _, c := range []*cobra.Command{attestTokenCmd, createWrappedCmd, createAdapterCmd} {
		c.Flags().String("chain-id", "", "wormhole chain id (or network name) of the chain the bridge app is on")
		c.Flags().Uint32("nonce", 0, "message nonce (random in [0, 10000) when omitted)")
		markRequired(c, "chain-id")
	}

	attestTokenCmd.Flags().String("token-address", "", "token to attest")
	attestTokenCmd.Flags().String("publisher-type", "", "guardian network to fetch the VAA from (0 for WH_19, 1 for WH_ISK); no VAA is fetched when omitted")
	markRequired(attestTokenCmd, "token-address")

	createWrappedCmd.Flags().String("asset-meta-vm", "", "asset meta VAA (base64 or 0x hex)")
	markRequired(createWrappedCmd, "asset-meta-vm")

	createAdapterCmd.Flags().String("asset-meta-vm", "", "asset meta VAA (base64 or 0x hex)")
	createAdapterCmd.Flags().String("init", "0", "initial amount held by the adapter")
	markRequired(createAdapterCmd, "asset-meta-vm")

	addTargetFlags(submitVAACmd)
	submitVAACmd.Flags().String("vaa", "", "signed VAA (base64 or 0x hex)")
	markRequired(submitVAACmd, "vaa")

	rootCmd.AddCommand(attestTokenCmd, createWrappedCmd, createAdapterCmd, submitVAACmd)
}

// addTargetFlags adds the flags selecting a destination contract method.
func addTargetFlags(c *cobra.Command) {
	c.Flags().String("target-chain-id", "", "wormhole chain id (or network name) of the destination chain")
	c.Flags().String("method", "", fmt.Sprintf("destination method (%v)", submitter.Methods()))
	c.Flags().String("app", string(config.AppBridge), "destination bridge app (bridge, nftbridge, multitokenbridge)")
	c.Flags().String("verifier-type", "0", "wormhole core receiving "+coreMethod+" (0 for WH_19, 1 for WH_ISK)")
	markRequired(c, "target-chain-id", "method")
}

// target resolves the contract the method flag addresses.
func target(cmd *cobra.Command, cfg *config.Config) (common.Address, string, error) {
	chainID, err := chainIDFlag(cmd, "target-chain-id")
	if err != nil {
		return common.Address{}, "", err
	}
	method, _ := cmd.Flags().GetString("method")
	if method == coreMethod {
		verifier, err := requiredVerifier(cmd, "verifier-type")
		if err != nil {
			return common.Address{}, "", err
		}
		addr, err := cfg.Wormhole(chainID, verifier)
		return addr, method, err
	}
	app, _ := cmd.Flags().GetString("app")
	addr, err := cfg.BridgeApp(chainID, config.App(app))
	return addr, method, err
}

// bridgeOperator connects to the bridge app of the --chain-id chain.
func (s *session) bridgeOperator(cmd *cobra.Command) (*internal.BridgeOperator, error) {
	chainID, err := chainIDFlag(cmd, "chain-id")
	if err != nil {
		return nil, err
	}
	bridge, err := s.cfg.BridgeApp(chainID, config.AppBridge)
	if err != nil {
		return nil, err
	}
	if err := s.connect(true); err != nil {
		return nil, err
	}
	attestor, err := s.attestor()
	if err != nil {
		return nil, err
	}
	return internal.NewBridgeOperator(s.logger, s.client, bridge, chainID, s.cfg.Confirmations, attestor), nil
}

func runPublished(cmd *cobra.Command, args []string, publish func(*session, *internal.BridgeOperator, uint32) (*internal.Published, error)) error {
	s, err := newSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	operator, err := s.bridgeOperator(cmd)
	if err != nil {
		return err
	}
	nonce := internal.NonceOrRandom(optionalNonce(cmd, "nonce"))

	published, err := publish(s, operator, nonce)
	if err != nil {
		return err
	}
	s.logger.Info("Sequence",
		zap.String("sequence", published.Message.Sequence),
		zap.Uint32("nonce", published.Nonce),
		zap.String("txHash", published.Receipt.TxHash.Hex()))
	printVAA(cmd, published.VAA)
	return nil
}

var attestTokenCmd = &cobra.Command{
	Use:   "attest-token",
	Short: "Publish the metadata of a token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := addressFlag(cmd, "token-address")
		if err != nil {
			return err
		}
		publisher, err := optionalVerifier(cmd, "publisher-type")
		if err != nil {
			return err
		}
		return runPublished(cmd, args, func(s *session, op *internal.BridgeOperator, nonce uint32) (*internal.Published, error) {
			ctx, cancel := signalContext(s.logger)
			defer cancel()
			return op.AttestToken(ctx, token, nonce, publisher)
		})
	},
}

var createWrappedCmd = &cobra.Command{
	Use:   "create-wrapped",
	Short: "Create a wrapped token from an asset meta VAA",
	RunE: func(cmd *cobra.Command, args []string) error {
		vm, err := vaaFlag(cmd, "asset-meta-vm")
		if err != nil {
			return err
		}
		return runPublished(cmd, args, func(s *session, op *internal.BridgeOperator, nonce uint32) (*internal.Published, error) {
			ctx, cancel := signalContext(s.logger)
			defer cancel()
			return op.CreateWrapped(ctx, vm, nonce)
		})
	},
}

var createAdapterCmd = &cobra.Command{
	Use:   "create-adapter",
	Short: "Create a wrapped token adapter from an asset meta VAA",
	RunE: func(cmd *cobra.Command, args []string) error {
		vm, err := vaaFlag(cmd, "asset-meta-vm")
		if err != nil {
			return err
		}
		amount, _ := cmd.Flags().GetString("init")
		initial, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return fmt.Errorf("%w: --init %q is not a decimal amount", config.ErrInvalidConfiguration, amount)
		}
		return runPublished(cmd, args, func(s *session, op *internal.BridgeOperator, nonce uint32) (*internal.Published, error) {
			ctx, cancel := signalContext(s.logger)
			defer cancel()
			return op.CreateAdapter(ctx, vm, initial, nonce)
		})
	},
}

var submitVAACmd = &cobra.Command{
	Use:   "submit-vaa",
	Short: "Submit a signed VAA to a destination contract method",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := vaaFlag(cmd, "vaa")
		if err != nil {
			return err
		}
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		addr, method, err := target(cmd, s.cfg)
		if err != nil {
			return err
		}
		if err := s.connect(true); err != nil {
			return err
		}
		sub, err := submitter.NewEVMSubmitter(s.logger, s.client, addr, method, s.cfg.Confirmations)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		txHash, err := sub.SubmitVAA(ctx, raw)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), txHash)
		return nil
	},
}
