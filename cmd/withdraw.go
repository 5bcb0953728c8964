package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilbridge/relayer/internal/submitter"
)

// withdrawCmd submits a private withdraw request to the bridge contract.
var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Submit a private withdraw from a request file",
	Long: `Reads a private withdraw request (amount, nullifier, new commitment,
recipient, proof) from a JSON file and submits it to the bridge contract.

The submission is refused without sending anything when the nullifier has
already been used or the current gas price exceeds the configured ceiling.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
		configureLogging(cmd, args)
	},
	RunE: runWithdraw,
}

func init() {
	rootCmd.AddCommand(withdrawCmd)

	withdrawCmd.Flags().String(
		"request-file",
		"",
		"Path to the JSON withdraw request (required)")

	addDestinationFlags(withdrawCmd)

	withdrawCmd.MarkFlagRequired("request-file")
}

func runWithdraw(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	logger.Info("Submitting private withdraw")

	requestFile, _ := cmd.Flags().GetString("request-file")
	dest, err := destinationConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(requestFile)
	if err != nil {
		return fmt.Errorf("failed to read request file: %v", err)
	}

	req, err := submitter.ParseWithdrawRequest(data)
	if err != nil {
		return fmt.Errorf("invalid withdraw request: %v", err)
	}

	destClient, sub, err := buildSubmitter(logger, dest)
	if err != nil {
		return err
	}
	defer destClient.Close()

	outcome := sub.Submit(context.Background(), req)
	return reportOutcome(logger, outcome)
}
