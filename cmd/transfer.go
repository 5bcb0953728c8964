package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilbridge/relayer/internal/submitter"
)

// transferCmd submits a private transfer request to the bridge contract.
var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Submit a private transfer from a request file",
	Long: `Reads a private transfer request (nullifier, commitments, stealth and audit
data, proof) from a JSON file and submits it to the bridge contract.

The submission is refused without sending anything when the nullifier has
already been used or the current gas price exceeds the configured ceiling.`,
	PreRun: func(cmd *cobra.Command, args []string) {
		printBanner()
		configureLogging(cmd, args)
	},
	RunE: runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().String(
		"request-file",
		"",
		"Path to the JSON transfer request (required)")

	addDestinationFlags(transferCmd)

	transferCmd.MarkFlagRequired("request-file")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	logger := configureLogging(cmd, args)
	logger.Info("Submitting private transfer")

	requestFile, _ := cmd.Flags().GetString("request-file")
	dest, err := destinationConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(requestFile)
	if err != nil {
		return fmt.Errorf("failed to read request file: %v", err)
	}

	req, err := submitter.ParseTransferRequest(data)
	if err != nil {
		return fmt.Errorf("invalid transfer request: %v", err)
	}

	destClient, sub, err := buildSubmitter(logger, dest)
	if err != nil {
		return err
	}
	defer destClient.Close()

	outcome := sub.Submit(context.Background(), req)
	return reportOutcome(logger, outcome)
}
