package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pdfrenamer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "pdfrenamer",
	Short: "Propose readable file names for uploaded PDFs",
	Long: `pdfrenamer reads the first page of each PDF, asks a summarization model
for a short title and offers the file back under that name. Without a
subcommand it starts the web server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Printf("load .env: %v", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: $PDFRENAMER_CONFIG or ./config.json)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("PDFRENAMER_CONFIG")
	}
	return config.Load(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
