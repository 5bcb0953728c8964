package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/veilbridge/relayer/internal"
	"github.com/veilbridge/relayer/internal/clients"
)

// watchCmd runs the relayer as a long-lived process, relaying every message
// the emitter contract publishes.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the source chain and relay every emitted message",
	Long: `Subscribes to the bridge emitter's message events on the source chain and
relays each one: attestation lookup, then submission to the destination
bridge contract. Falls back to log polling when the source RPC endpoint does
not support subscriptions.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
		configureLogging(cmd, args)
	},
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String(
		"source-rpc-url",
		"",
		"RPC URL for the source chain (required)")

	watchCmd.Flags().String(
		"emitter-address",
		"",
		"Bridge emitter contract on the source chain (required)")

	watchCmd.Flags().String(
		"metrics-addr",
		"",
		"Listen address for Prometheus metrics (empty disables)")

	addDestinationFlags(watchCmd)

	watchCmd.MarkFlagRequired("source-rpc-url")
	watchCmd.MarkFlagRequired("emitter-address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	logger.Info("Starting watch relayer")

	sourceRPCURL, _ := cmd.Flags().GetString("source-rpc-url")
	emitterAddress, _ := cmd.Flags().GetString("emitter-address")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	dest, err := destinationConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	if !common.IsHexAddress(emitterAddress) {
		return fmt.Errorf("invalid emitter address: %s", emitterAddress)
	}

	attestationURL := viper.GetString("attestation_url")

	logger.Info("Configuration",
		zap.String("sourceRPC", sourceRPCURL),
		zap.String("emitter", emitterAddress),
		zap.String("destRPC", dest.RPCURL),
		zap.String("bridgeContract", dest.BridgeContract),
		zap.String("attestationURL", attestationURL),
		zap.String("metricsAddr", metricsAddr))

	// Create source chain client (read-only)
	sourceClient, err := clients.NewReadOnlyEVMClient(logger, sourceRPCURL)
	if err != nil {
		return fmt.Errorf("failed to create source client: %v", err)
	}
	defer sourceClient.Close()

	// Create destination chain client and submitter
	destClient, sub, err := buildSubmitter(logger, dest)
	if err != nil {
		return err
	}
	defer destClient.Close()

	// Create attestation client and verify the oracle is reachable before
	// committing to the watch loop
	oracle := clients.NewAttestationClient(logger, clients.AttestationConfig{
		BaseURL:      attestationURL,
		PollInterval: viper.GetDuration("poll_interval"),
		MaxAttempts:  viper.GetInt("max_poll_attempts"),
	})

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := oracle.CheckHealth(healthCtx); err != nil {
		logger.Warn("Attestation oracle health check failed", zap.Error(err))
	}
	healthCancel()

	// Log the relayer balance so an underfunded key is visible up front
	balanceCtx, balanceCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if balance, err := destClient.BalanceAt(balanceCtx); err == nil {
		logger.Info("Relayer balance",
			zap.String("address", destClient.GetAddress().Hex()),
			zap.String("balanceWei", balance.String()))
	}
	balanceCancel()

	orchestrator := internal.NewOrchestrator(logger,
		internal.OrchestratorConfig{
			EmitterAddress: common.HexToAddress(emitterAddress),
		},
		sourceClient, oracle, sub)

	watcher := internal.NewWatcher(logger,
		common.HexToAddress(emitterAddress), sourceClient, orchestrator)

	// Serve Prometheus metrics if requested
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("Serving metrics", zap.String("addr", metricsAddr))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("watcher stopped with error: %v", err)
	}

	return nil
}
