package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/samehost-crawler/internal/logging"
	"github.com/JakeFAU/samehost-crawler/pkg/config"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "Crawls every page of a single site.",
		Long: `sitecrawler starts from a seed URL, follows every link that stays on the
seed's host and records each fetched URL with its HTTP status in a JSON file.`,
		SilenceUsage: true,

		// Configuration is loaded before any subcommand runs.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.InitConfig(cfgFile); err != nil {
				return fmt.Errorf("initialize config: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	// Commands build their own logger once the config has been read.
	if err := logging.InitLogger(logging.Options{Development: true}); err != nil {
		panic(err)
	}
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
