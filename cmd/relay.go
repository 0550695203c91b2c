package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal"
	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/submitter"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

func init() {
	watchVAACmd.Flags().String("chain-id", "", "wormhole chain id of the emitter")
	watchVAACmd.Flags().String("emitter-address", "", "message emitter address")
	watchVAACmd.Flags().String("sequence", "", "sequence number of the message")
	watchVAACmd.Flags().String("encoding", string(vaa.EncodingBase64), "base64 or hex")
	markRequired(watchVAACmd, "chain-id", "emitter-address", "sequence")

	relayCmd.Flags().String("source-chain-id", "", "wormhole chain id to relay VAAs from")
	relayCmd.Flags().String("emitter-address", "", "source emitter to relay (every emitter of the source chain when omitted)")
	addTargetFlags(relayCmd)
	markRequired(relayCmd, "source-chain-id")

	rootCmd.AddCommand(watchVAACmd, relayCmd)
}

var watchVAACmd = &cobra.Command{
	Use:   "watch-vaa",
	Short: "Wait for a VAA on the guardian spy stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		chainID, err := chainIDFlag(cmd, "chain-id")
		if err != nil {
			return err
		}
		emitter, err := wordFlag(cmd, "emitter-address")
		if err != nil {
			return err
		}
		seqFlag, err := sequenceFlag(cmd)
		if err != nil {
			return err
		}
		seq, _ := strconv.ParseUint(seqFlag, 10, 64)
		encoding, err := encodingFlag(cmd)
		if err != nil {
			return err
		}

		spyClient, err := clients.NewSpyClient(s.logger, s.cfg.SpyRPCHost)
		if err != nil {
			return fmt.Errorf("failed to create spy client: %v", err)
		}
		defer spyClient.Close()

		ctx, cancel := signalContext(s.logger)
		defer cancel()

		data, err := internal.NewWatcher(s.logger, spyClient).WaitFor(ctx, chainID, emitter, seq)
		if err != nil {
			return err
		}
		if data == nil {
			return fmt.Errorf("stopped before VAA %d/%s/%d was observed", chainID, emitter, seq)
		}
		internal.LogVAA(s.logger, data.VAA)
		fmt.Fprintln(cmd.OutOrStdout(), encoding.Format(data.RawBytes))
		return nil
	},
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay VAAs from the spy stream to a destination contract method",
	Long: `Listens for signed VAAs on the guardian spy stream and submits every VAA
from the source chain (and emitter, if given) to the destination method.

Each VAA is submitted at most once per run.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		sourceChain, err := chainIDFlag(cmd, "source-chain-id")
		if err != nil {
			return err
		}
		processorConfig := internal.RelayProcessorConfig{ChainID: sourceChain}
		if cmd.Flags().Changed("emitter-address") {
			emitter, err := wordFlag(cmd, "emitter-address")
			if err != nil {
				return err
			}
			processorConfig.Emitter = &emitter
		}

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

		emitterFilter := "any"
		if processorConfig.Emitter != nil {
			emitterFilter = processorConfig.Emitter.Hex()
		}
		s.logger.Info("Configuration",
			zap.String("spyRPC", s.cfg.SpyRPCHost),
			zap.Uint16("sourceChainId", sourceChain),
			zap.String("emitterFilter", emitterFilter),
			zap.String("target", addr.Hex()),
			zap.String("method", method))

		spyClient, err := clients.NewSpyClient(s.logger, s.cfg.SpyRPCHost)
		if err != nil {
			return fmt.Errorf("failed to create spy client: %v", err)
		}
		defer spyClient.Close()

		ctx, cancel := signalContext(s.logger)
		defer cancel()

		processor := internal.NewRelayProcessor(s.logger, processorConfig, sub)
		if err := internal.NewWatcher(s.logger, spyClient).Start(ctx, processor); err != nil {
			return fmt.Errorf("relayer stopped with error: %v", err)
		}
		return nil
	},
}
