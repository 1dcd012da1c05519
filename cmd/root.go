package cmd

import (
	"fmt"
	"os"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	appConfig config.Config
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:          "jira-attachment-migrator",
	Short:        "Move JIRA attachments into S3",
	Long:         `Downloads every attachment of the selected JIRA projects, checks its size, uploads it to an S3 bucket under <project>/<issue>/<filename>, and optionally deletes it from JIRA once the stored copy is verified.`,
	Version:      version,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.jira-attachment-migrator.yaml)")
}

// loadConfig loads the full run configuration, lets adjust apply command line
// overrides, and validates the result.
func loadConfig(adjust func(*config.Config)) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if adjust != nil {
		adjust(&cfg)
	}
	if err := validationView(cfg).Validate(); err != nil {
		return fmt.Errorf("invalid config: %w\nRun 'jira-attachment-migrator config' to set up credentials", err)
	}
	appConfig = cfg
	return nil
}

// loadJiraConfig is loadConfig for commands that only talk to JIRA.
func loadJiraConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateJira(); err != nil {
		return fmt.Errorf("invalid config: %w\nRun 'jira-attachment-migrator config' to set up credentials", err)
	}
	appConfig = cfg
	return nil
}
