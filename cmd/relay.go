package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veilbridge/relayer/internal"
	"github.com/veilbridge/relayer/internal/clients"
	"github.com/veilbridge/relayer/internal/submitter"
)

// relayCmd relays a single source-chain transaction's message to the
// destination chain.
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay one source transaction's message to the destination chain",
	Long: `Resolves the given source transaction, extracts its bridge message,
obtains the oracle attestation for the message's content hash and submits the
attested message to the destination bridge contract.

A source transaction that carries no bridge message is reported as a no-op,
not a failure.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
		configureLogging(cmd, args)
	},
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().String(
		"source-tx",
		"",
		"Source chain transaction hash to relay (required)")

	relayCmd.Flags().String(
		"source-rpc-url",
		"",
		"RPC URL for the source chain (required)")

	relayCmd.Flags().String(
		"emitter-address",
		"",
		"Bridge emitter contract on the source chain (required)")

	addDestinationFlags(relayCmd)

	relayCmd.MarkFlagRequired("source-tx")
	relayCmd.MarkFlagRequired("source-rpc-url")
	relayCmd.MarkFlagRequired("emitter-address")
}

// RelayConfig collects everything one relay invocation needs.
type RelayConfig struct {
	SourceTx       string // Source transaction hash
	SourceRPCURL   string // RPC URL for the source chain
	EmitterAddress string // Emitter contract on the source chain
	Destination    DestinationConfig
	AttestationURL string // Oracle base URL
}

func runRelay(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	logger.Info("Starting one-shot relay")

	// Get flags directly from command (viper bindings conflict across commands)
	sourceTx, _ := cmd.Flags().GetString("source-tx")
	sourceRPCURL, _ := cmd.Flags().GetString("source-rpc-url")
	emitterAddress, _ := cmd.Flags().GetString("emitter-address")

	dest, err := destinationConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	config := RelayConfig{
		SourceTx:       sourceTx,
		SourceRPCURL:   sourceRPCURL,
		EmitterAddress: emitterAddress,
		Destination:    dest,
		AttestationURL: viper.GetString("attestation_url"),
	}

	if !common.IsHexAddress(config.EmitterAddress) {
		return fmt.Errorf("invalid emitter address: %s", config.EmitterAddress)
	}

	logger.Info("Configuration",
		zap.String("sourceTx", config.SourceTx),
		zap.String("sourceRPC", config.SourceRPCURL),
		zap.String("emitter", config.EmitterAddress),
		zap.String("destRPC", config.Destination.RPCURL),
		zap.String("bridgeContract", config.Destination.BridgeContract),
		zap.String("attestationURL", config.AttestationURL))

	// Create source chain client (read-only)
	sourceClient, err := clients.NewReadOnlyEVMClient(logger, config.SourceRPCURL)
	if err != nil {
		return fmt.Errorf("failed to create source client: %v", err)
	}
	defer sourceClient.Close()

	// Create destination chain client and submitter
	destClient, sub, err := buildSubmitter(logger, config.Destination)
	if err != nil {
		return err
	}
	defer destClient.Close()

	// Create attestation client
	oracle := clients.NewAttestationClient(logger, clients.AttestationConfig{
		BaseURL:      config.AttestationURL,
		PollInterval: viper.GetDuration("poll_interval"),
		MaxAttempts:  viper.GetInt("max_poll_attempts"),
	})

	orchestrator := internal.NewOrchestrator(logger,
		internal.OrchestratorConfig{
			EmitterAddress: common.HexToAddress(config.EmitterAddress),
		},
		sourceClient, oracle, sub)

	// Setup context with cancellation on shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("Received shutdown signal")
		cancel()
	}()

	outcome, err := orchestrator.Relay(ctx, common.HexToHash(config.SourceTx))
	if err != nil {
		return fmt.Errorf("relay failed: %v", err)
	}
	if outcome == nil {
		logger.Info("Transaction carried no bridge message, nothing relayed")
		return nil
	}

	return reportOutcome(logger, outcome)
}

// DestinationConfig is the destination-chain slice of the configuration,
// shared by the relay, watch, transfer and withdraw commands.
type DestinationConfig struct {
	RPCURL         string   // RPC URL for the destination chain
	PrivateKey     string   // Relayer signing key
	BridgeContract string   // Bridge contract on the destination chain
	MaxGasPrice    *big.Int // Refuse to submit above this gas price (wei)
	GasLimit       uint64   // Fixed gas limit ceiling per submission
}

// addDestinationFlags registers the destination-chain flags on a command.
func addDestinationFlags(cmd *cobra.Command) {
	cmd.Flags().String(
		"dest-rpc-url",
		"",
		"RPC URL for the destination chain (required)")

	cmd.Flags().String(
		"private-key",
		"",
		"Private key for destination transactions (required)")

	cmd.Flags().String(
		"bridge-contract",
		"",
		"Bridge contract on the destination chain (required)")

	cmd.Flags().Int64(
		"max-gas-price-gwei",
		100,
		"Maximum gas price in gwei; submissions above it are refused")

	cmd.Flags().Uint64(
		"gas-limit",
		submitter.DefaultGasLimit,
		"Fixed gas limit for destination transactions")

	cmd.MarkFlagRequired("dest-rpc-url")
	cmd.MarkFlagRequired("private-key")
	cmd.MarkFlagRequired("bridge-contract")
}

func destinationConfigFromFlags(cmd *cobra.Command) (DestinationConfig, error) {
	rpcURL, _ := cmd.Flags().GetString("dest-rpc-url")
	privateKey, _ := cmd.Flags().GetString("private-key")
	bridgeContract, _ := cmd.Flags().GetString("bridge-contract")
	maxGasPriceGwei, _ := cmd.Flags().GetInt64("max-gas-price-gwei")
	gasLimit, _ := cmd.Flags().GetUint64("gas-limit")

	if privateKey == "" {
		return DestinationConfig{}, fmt.Errorf("private key is required for destination transactions")
	}
	if !common.IsHexAddress(bridgeContract) {
		return DestinationConfig{}, fmt.Errorf("invalid bridge contract address: %s", bridgeContract)
	}
	if maxGasPriceGwei <= 0 {
		return DestinationConfig{}, fmt.Errorf("max gas price must be positive")
	}

	return DestinationConfig{
		RPCURL:         rpcURL,
		PrivateKey:     privateKey,
		BridgeContract: bridgeContract,
		MaxGasPrice:    new(big.Int).Mul(big.NewInt(maxGasPriceGwei), big.NewInt(params.GWei)),
		GasLimit:       gasLimit,
	}, nil
}

// buildSubmitter wires a destination EVM client and a submitter around it.
func buildSubmitter(logger *zap.Logger, dest DestinationConfig) (*clients.EVMClient, *submitter.Submitter, error) {
	destClient, err := clients.NewEVMClient(logger, dest.RPCURL, dest.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create destination client: %v", err)
	}

	logger.Info("Connected to destination chain",
		zap.String("address", destClient.GetAddress().Hex()))

	sub := submitter.New(logger, submitter.Config{
		ContractAddress: common.HexToAddress(dest.BridgeContract),
		MaxGasPrice:     dest.MaxGasPrice,
		GasLimit:        dest.GasLimit,
	}, destClient)

	return destClient, sub, nil
}

// reportOutcome logs a submission outcome and converts a failed one into a
// non-zero exit.
func reportOutcome(logger *zap.Logger, outcome *submitter.TxOutcome) error {
	if outcome.Confirmed() {
		logger.Info("Transaction confirmed",
			zap.String("txHash", outcome.TxHash.Hex()),
			zap.Uint64("blockNumber", outcome.BlockNumber),
			zap.Uint64("gasUsed", outcome.GasUsed))
		return nil
	}

	logger.Error("Transaction failed",
		zap.String("txHash", outcome.TxHash.Hex()),
		zap.String("reason", outcome.Reason))
	return fmt.Errorf("submission failed: %s", outcome.Reason)
}
