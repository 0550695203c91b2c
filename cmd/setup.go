package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wormhole-demo/bridgeops/internal"
	"github.com/wormhole-demo/bridgeops/internal/clients"
	"github.com/wormhole-demo/bridgeops/internal/config"
	"github.com/wormhole-demo/bridgeops/internal/governance"
	"github.com/wormhole-demo/bridgeops/internal/journal"
	"github.com/wormhole-demo/bridgeops/internal/vaa"
)

// session holds what a command run needs. Fields a command did not ask for
// stay nil.
type session struct {
	logger  *zap.Logger
	cfg     *config.Config
	client  *clients.EVMClient
	journal *journal.Journal
}

func newSession(cmd *cobra.Command, args []string) (*session, error) {
	logger := configureLogging(cmd, args)
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return &session{logger: logger, cfg: cfg}, nil
}

// connect opens the EVM client. Read-only clients need only the RPC URL.
func (s *session) connect(signer bool) error {
	if signer {
		if err := s.cfg.RequireSigner(); err != nil {
			return err
		}
	} else if s.cfg.RPCURL == "" {
		return fmt.Errorf("%w: rpc url is not set", config.ErrInvalidConfiguration)
	}

	key := ""
	if signer {
		key = s.cfg.PrivateKey
	}
	client, err := clients.NewEVMClient(s.logger, s.cfg.RPCURL, key)
	if err != nil {
		return fmt.Errorf("failed to create EVM client: %v", err)
	}
	s.client = client
	if signer {
		s.logger.Info("Connected to EVM", zap.String("address", client.Address().Hex()))
	}
	return nil
}

func (s *session) guardians() *clients.GuardianClient {
	return clients.NewGuardianClient(s.logger, s.cfg.Guardians)
}

// attestor builds the guardian poller backed by the pending journal.
func (s *session) attestor() (*internal.Attestor, error) {
	j, err := journal.Open(s.cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	s.journal = j
	poller := clients.NewPoller(s.logger, s.guardians(), s.cfg.PollInterval)
	return internal.NewAttestor(s.logger, poller, j, s.cfg.PollAttempts, s.cfg.Encoding), nil
}

func (s *session) orchestrator() (*internal.Orchestrator, error) {
	governanceAddr, err := s.cfg.Governance()
	if err != nil {
		return nil, err
	}
	chainID, emitter, err := s.cfg.GovernanceEmitter()
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
	multisig := governance.NewMultisig(s.logger, s.client, governanceAddr, s.cfg.Confirmations)
	return internal.NewOrchestrator(s.logger, multisig, attestor, chainID, emitter), nil
}

func (s *session) Close() {
	if s.client != nil {
		s.client.Close()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("Failed to close journal", zap.Error(err))
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()

	return ctx, cancel
}

// optionalVerifier returns nil when flag was not given.
func optionalVerifier(cmd *cobra.Command, flag string) (*config.Verifier, error) {
	if !cmd.Flags().Changed(flag) {
		return nil, nil
	}
	s, _ := cmd.Flags().GetString(flag)
	v, err := config.ParseVerifier(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func requiredVerifier(cmd *cobra.Command, flag string) (config.Verifier, error) {
	s, _ := cmd.Flags().GetString(flag)
	return config.ParseVerifier(s)
}

func chainIDFlag(cmd *cobra.Command, flag string) (uint16, error) {
	s, _ := cmd.Flags().GetString(flag)
	id, err := config.ParseChainID(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}
	return id, nil
}

func addressFlag(cmd *cobra.Command, flag string) (common.Address, error) {
	s, _ := cmd.Flags().GetString(flag)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: --%s %q is not an address", config.ErrInvalidConfiguration, flag, s)
	}
	return common.HexToAddress(s), nil
}

func wordFlag(cmd *cobra.Command, flag string) (vaa.Address, error) {
	s, _ := cmd.Flags().GetString(flag)
	a, err := vaa.ParseAddress(s)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("%w: --%s: %v", config.ErrInvalidConfiguration, flag, err)
	}
	return a, nil
}

func vaaFlag(cmd *cobra.Command, flag string) ([]byte, error) {
	s, _ := cmd.Flags().GetString(flag)
	return vaa.DecodeString(s)
}

// optionalNonce returns nil when flag was not given, so a random nonce is drawn.
func optionalNonce(cmd *cobra.Command, flag string) *uint32 {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	n, _ := cmd.Flags().GetUint32(flag)
	return &n
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func printVAA(cmd *cobra.Command, fetched *clients.FetchedVAA) {
	if fetched == nil {
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), fetched.Encoded)
}
