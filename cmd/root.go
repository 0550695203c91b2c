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

	"github.com/wormhole-demo/bridgeops/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "bridgeops",
	Short:        "Operate wormhole bridge governance and bridge contracts",
	SilenceUsage: true,
}

func init() {
	loadEnv()

	rootCmd.PersistentFlags().Bool(
		"debug",
		false,
		"Enables debug output.")

	rootCmd.PersistentFlags().Bool(
		"json",
		false,
		"Enables structured logging in JSON format.")

	rootCmd.PersistentFlags().String(
		"rpc-url",
		"",
		"RPC URL of the EVM chain to send transactions to")

	rootCmd.PersistentFlags().String(
		"private-key",
		"",
		"Private key of the signing account")

	rootCmd.PersistentFlags().Uint64(
		"confirmations",
		config.DefaultConfirmations,
		"Blocks to wait for after a transaction is mined")

	rootCmd.PersistentFlags().Int(
		"poll-attempts",
		config.DefaultPollAttempts,
		"Guardian fetch attempts before a VAA is journaled as pending")

	rootCmd.PersistentFlags().Duration(
		"poll-interval",
		config.DefaultPollInterval,
		"Delay before each guardian fetch attempt")

	rootCmd.PersistentFlags().String(
		"journal-path",
		config.DefaultJournalPath,
		"Directory of the pending VAA journal")

	rootCmd.PersistentFlags().String(
		"spy-rpc-host",
		config.DefaultSpyRPCHost,
		"Wormhole spy service endpoint")

	// Bind flags to viper for env variable support
	for _, name := range []string{"rpc-url", "private-key", "confirmations", "poll-attempts", "poll-interval", "journal-path", "spy-rpc-host"} {
		viper.BindPFlag(strings.ReplaceAll(name, "-", "_"), rootCmd.PersistentFlags().Lookup(name))
	}

	cobra.OnInitialize(initConfig)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadEnv tentatively loads .env.<NODE_ENV> and then .env. Values already
// set win.
func loadEnv() {
	if env := os.Getenv("NODE_ENV"); env != "" {
		_ = dotenv.Load(".env." + env)
	}
	_ = dotenv.Load()
}

func initConfig() {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

func printBanner() {
	colours := []string{
		"\033[38;5;81m", // Cyan
		"\033[38;5;75m", // Light Blue
		"\033[38;5;69m", // Sky Blue
		"\033[38;5;63m", // Dodger Blue
		"\033[38;5;57m", // Deep Sky Blue
		"\033[38;5;51m", // Cornflower Blue
	}
	banner := `
 _          _     _
| |__  _ __(_) __| | __ _  ___  ___  _ __  ___
| '_ \| '__| |/ _' |/ _' |/ _ \/ _ \| '_ \/ __|
| |_) | |  | | (_| | (_| |  __/ (_) | |_) \__ \
|_.__/|_|  |_|\__,_|\__, |\___|\___/| .__/|___/
                    |___/           |_|
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

	var logConfig zap.Config
	if debug {
		logConfig = zap.NewDevelopmentConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		logConfig.Development = true
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		logConfig = zap.NewProductionConfig()
		logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	if json {
		logConfig.Encoding = "json"
	} else {
		logConfig.Encoding = "console"
		logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := logConfig.Build()
	if err != nil {
		// Fallback to a basic logger if config fails
		logger, _ = zap.NewProduction()
	}

	// Replace the global logger
	zap.ReplaceGlobals(logger)

	return logger
}
