package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cardscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "cardscan",
	Short: "cardscan - extract and check identity card data from images",
	Long: `cardscan reads an identity card image, recognizes its text with OCR, completes
the card fields (surname, first name, gender, date of birth, ID number) with a
generative model and normalizes them. The result can be validated by the model,
exported as JSON, CSV, PDF or XLSX, appended to a Google Sheet, or served over HTTP.

Configuration is read from the environment and an optional .env file.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("cardscan executed without subcommand")

		_ = cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
