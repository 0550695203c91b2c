package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal"
	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/sequence"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

func init() {
	getVAACmd.Flags().String("chain-id", "", "wormhole chain id of the emitter")
	getVAACmd.Flags().String("emitter-address", "", "message emitter address")
	getVAACmd.Flags().String("sequence", "", "sequence number of the message")
	getVAACmd.Flags().String("type", "", "0 for WH_19, 1 for WH_ISK")
	getVAACmd.Flags().String("encoding", string(vaa.EncodingBase64), "base64 or hex")
	markRequired(getVAACmd, "chain-id", "emitter-address", "sequence", "type")

	govVAACmd.Flags().String("sequence", "", "sequence number of the governance message")
	govVAACmd.Flags().String("encoding", string(vaa.EncodingBase64), "base64 or hex")
	markRequired(govVAACmd, "sequence")

	parseVMCmd.Flags().String("vaa", "", "VAA (base64 or 0x hex)")
	markRequired(parseVMCmd, "vaa")

	parseMessageCmd.Flags().String("tx-hash", "", "transaction hash")
	markRequired(parseMessageCmd, "tx-hash")

	revertReasonCmd.Flags().String("tx-hash", "", "transaction hash")
	markRequired(revertReasonCmd, "tx-hash")

	rootCmd.AddCommand(getVAACmd, govVAACmd, parseVMCmd, parseMessageCmd, txReceiptCmd, revertReasonCmd, fetchPendingCmd)
}

// fetchOnce performs a single guardian fetch and prints the VAA.
func fetchOnce(cmd *cobra.Command, s *session, req clients.VAARequest) error {
	ctx, cancel := signalContext(s.logger)
	defer cancel()

	fetched, err := s.guardians().FetchVAA(ctx, req)
	if err != nil {
		return err
	}
	if fetched == nil {
		return fmt.Errorf("VAA %d/%s/%s is not available", req.ChainID, req.Emitter, req.Sequence)
	}
	printVAA(cmd, fetched)
	return nil
}

func encodingFlag(cmd *cobra.Command) (vaa.Encoding, error) {
	s, _ := cmd.Flags().GetString("encoding")
	return vaa.ParseEncoding(s)
}

func sequenceFlag(cmd *cobra.Command) (string, error) {
	s, _ := cmd.Flags().GetString("sequence")
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return "", fmt.Errorf("%w: --sequence %q is not a decimal sequence", config.ErrInvalidConfiguration, s)
	}
	return s, nil
}

var getVAACmd = &cobra.Command{
	Use:   "get-vaa",
	Short: "Fetch a signed VAA from a guardian network",
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
		seq, err := sequenceFlag(cmd)
		if err != nil {
			return err
		}
		verifier, err := requiredVerifier(cmd, "type")
		if err != nil {
			return err
		}
		encoding, err := encodingFlag(cmd)
		if err != nil {
			return err
		}
		return fetchOnce(cmd, s, clients.VAARequest{
			Verifier: verifier,
			ChainID:  chainID,
			Emitter:  emitter,
			Sequence: seq,
			Encoding: encoding,
		})
	},
}

var govVAACmd = &cobra.Command{
	Use:   "gov-vaa",
	Short: "Fetch the VAA of a governance message",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		chainID, emitter, err := s.cfg.GovernanceEmitter()
		if err != nil {
			return err
		}
		seq, err := sequenceFlag(cmd)
		if err != nil {
			return err
		}
		encoding, err := encodingFlag(cmd)
		if err != nil {
			return err
		}
		return fetchOnce(cmd, s, clients.VAARequest{
			Verifier: internal.GovernanceVerifier,
			ChainID:  chainID,
			Emitter:  emitter,
			Sequence: seq,
			Encoding: encoding,
		})
	},
}

type signatureView struct {
	GuardianIndex uint8  `json:"guardianIndex"`
	R             string `json:"r"`
	S             string `json:"s"`
	V             uint8  `json:"v"`
}

type vaaView struct {
	Version          uint8           `json:"version"`
	GuardianSetIndex uint32          `json:"guardianSetIndex"`
	Signatures       []signatureView `json:"signatures"`
	Timestamp        uint32          `json:"timestamp"`
	Nonce            uint32          `json:"nonce"`
	EmitterChainID   uint16          `json:"emitterChainId"`
	EmitterChain     string          `json:"emitterChain"`
	EmitterAddress   string          `json:"emitterAddress"`
	Sequence         string          `json:"sequence"`
	ConsistencyLevel uint8           `json:"consistencyLevel"`
	Payload          string          `json:"payload"`
	Hash             string          `json:"hash"`
}

func newVAAView(v *vaa.VAA) vaaView {
	sigs := make([]signatureView, len(v.Signatures))
	for i, sig := range v.Signatures {
		sigs[i] = signatureView{
			GuardianIndex: sig.GuardianIndex,
			R:             "0x" + hex.EncodeToString(sig.R[:]),
			S:             "0x" + hex.EncodeToString(sig.S[:]),
			V:             sig.V,
		}
	}
	return vaaView{
		Version:          v.Version,
		GuardianSetIndex: v.GuardianSetIndex,
		Signatures:       sigs,
		Timestamp:        v.Timestamp,
		Nonce:            v.Nonce,
		EmitterChainID:   v.EmitterChainID,
		EmitterChain:     vaa.ChainName(v.EmitterChainID),
		EmitterAddress:   v.EmitterAddress.Hex(),
		Sequence:         strconv.FormatUint(v.Sequence, 10),
		ConsistencyLevel: v.ConsistencyLevel,
		Payload:          "0x" + hex.EncodeToString(v.Payload),
		Hash:             v.Hash.Hex(),
	}
}

var parseVMCmd = &cobra.Command{
	Use:   "parse-vm",
	Short: "Decode a VAA without verifying it",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := configureLogging(cmd, args)
		raw, err := vaaFlag(cmd, "vaa")
		if err != nil {
			return err
		}
		v, err := vaa.DecodePermissive(raw)
		if err != nil {
			return err
		}
		internal.LogVAA(logger, v)
		return printJSON(cmd, newVAAView(v))
	},
}

type messageView struct {
	Sender           string `json:"sender"`
	Sequence         string `json:"sequence"`
	Nonce            uint32 `json:"nonce"`
	Payload          string `json:"payload"`
	ConsistencyLevel uint8  `json:"consistencyLevel"`
	Core             string `json:"core"`
}

var parseMessageCmd = &cobra.Command{
	Use:   "parse-message",
	Short: "Decode every message published by a transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		hash, err := hashFlag(cmd.Flags().GetString("tx-hash"))
		if err != nil {
			return err
		}
		if err := s.connect(false); err != nil {
			return err
		}

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		receipt, err := s.client.Receipt(ctx, hash)
		if err != nil {
			return err
		}
		messages, err := sequence.ExtractAll(receipt.Logs)
		if err != nil {
			return err
		}

		views := make([]messageView, len(messages))
		for i, m := range messages {
			views[i] = messageView{
				Sender:           m.Sender.Hex(),
				Sequence:         m.Sequence,
				Nonce:            m.Nonce,
				Payload:          "0x" + hex.EncodeToString(m.Payload),
				ConsistencyLevel: m.ConsistencyLevel,
				Core:             m.Core.Hex(),
			}
		}
		return printJSON(cmd, views)
	},
}

var txReceiptCmd = &cobra.Command{
	Use:   "tx-receipt <txHash>",
	Short: "Show a transaction receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		hash, err := hashFlag(args[0], nil)
		if err != nil {
			return err
		}
		if err := s.connect(false); err != nil {
			return err
		}

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		receipt, err := s.client.Receipt(ctx, hash)
		if err != nil {
			return err
		}
		return printJSON(cmd, receipt)
	},
}

var revertReasonCmd = &cobra.Command{
	Use:   "revert-reason",
	Short: "Replay a transaction and decode why it reverted",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		hash, err := hashFlag(cmd.Flags().GetString("tx-hash"))
		if err != nil {
			return err
		}
		if err := s.connect(false); err != nil {
			return err
		}

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		reason, err := clients.RevertReasonFromResult(s.client.ReplayTransaction(ctx, hash))
		if errors.Is(err, clients.ErrNoRevert) {
			s.logger.Info("Transaction does not revert when replayed", zap.String("txHash", hash.Hex()))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reason)
		return nil
	},
}

var fetchPendingCmd = &cobra.Command{
	Use:   "fetch-pending",
	Short: "Retry fetching every VAA that was not available when its message was published",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, args)
		if err != nil {
			return err
		}
		defer s.Close()

		attestor, err := s.attestor()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(s.logger)
		defer cancel()
		results, err := attestor.FetchPending(ctx)
		resolved := 0
		for _, r := range results {
			if r.VAA == nil {
				continue
			}
			resolved++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d/%s/%s %s\n",
				r.Message.Operation, r.Message.ChainID, r.Message.Emitter, r.Message.Sequence, r.VAA.Encoded)
		}
		s.logger.Info("Pending VAAs fetched",
			zap.Int("resolved", resolved),
			zap.Int("stillPending", len(results)-resolved))
		return err
	},
}

// hashFlag parses a transaction hash. It takes the flag getter result as is.
func hashFlag(s string, err error) (common.Hash, error) {
	if err != nil {
		return common.Hash{}, err
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q is not a transaction hash", config.ErrInvalidConfiguration, s)
	}
	return common.BytesToHash(b), nil
}
