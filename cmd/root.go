package cmd

import (
	"fmt"
	"os"
	"strings"

	dotenv "github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "veil-relayer",
	Short: "Relayer for attested bridge messages and private transactions",
}

func init() {
	// Tentatively load .env file
	_ = dotenv.Load()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	// Attestation oracle configuration (shared by relay and watch)
	rootCmd.PersistentFlags().String(
		"attestation-url",
		"http://localhost:8080/attestations",
		"Attestation oracle base URL")

	rootCmd.PersistentFlags().Duration(
		"poll-interval",
		0,
		"Attestation poll interval (default 10s)")

	rootCmd.PersistentFlags().Int(
		"max-poll-attempts",
		0,
		"Maximum attestation poll attempts (default 30)")

	// Bind flags to viper for env variable support
	viper.BindPFlag("attestation_url", rootCmd.PersistentFlags().Lookup("attestation-url"))
	viper.BindPFlag("poll_interval", rootCmd.PersistentFlags().Lookup("poll-interval"))
	viper.BindPFlag("max_poll_attempts", rootCmd.PersistentFlags().Lookup("max-poll-attempts"))

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("veil-relayer")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

func printBanner() {
	colours := []string{
		"\033[38;5;99m",  // Violet
		"\033[38;5;105m", // Purple Blue
		"\033[38;5;111m", // Steel Blue
		"\033[38;5;117m", // Sky Blue
		"\033[38;5;123m", // Pale Cyan
		"\033[38;5;159m", // Ice Blue
	}
	banner := `
 ____   ____     .__.__    __________       .__
 \   \ /   /____ |__|  |   \______   \ ____ |  | _____  ___.__. ___________
  \   Y   // __ \|  |  |    |       _// __ \|  | \__  \<   |  |/ __ \_  __ \
   \     /\  ___/|  |  |__  |    |   \  ___/|  |__/ __ \\___  \  ___/|  | \/
    \___/  \___  >__|____/  |____|_  /\___  >____(____  / ____|\___  >__|
               \/                  \/     \/          \/\/         \/
`
	lines := strings.Split(banner, "\n")

	// remove empty lines
	for i := 0; i < len(lines); i++ {
		if lines[i] == "" {
			lines = append(lines[:i], lines[i+1:]...)
			i--
		}
	}

	for i, line := range lines {
		fmt.Printf("%s%s\n", colours[i%len(colours)], line)
	}

	fmt.Println("\033[0m") // Reset
}

func configureLogging(cmd *cobra.Command, _ []string) *zap.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	json, _ := cmd.Flags().GetBool("json")

	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.Development = true
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	// Configure JSON output if requested
	if json {
		config.Encoding = "json"
	} else {
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}
