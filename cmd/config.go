package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure JIRA and S3 connection settings",
	Long:  `Interactively set up the JIRA URL, email, API token, projects, and the destination bucket. Settings are saved to ~/.jira-attachment-migrator.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		// Load existing config for defaults
		cfg, err := config.Load(cfgFile)
		if err != nil {
			cfg = config.Default()
		}

		cfg.Jira.URL = prompt(reader, "JIRA URL (e.g., https://your-org.atlassian.net)", cfg.Jira.URL)
		cfg.Jira.Email = prompt(reader, "Email", cfg.Jira.Email)

		token, err := promptSecret("API Token", cfg.Jira.Token)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		cfg.Jira.Token = token

		projects := prompt(reader, "Projects (comma separated, empty for all)", strings.Join(cfg.Jira.Projects, ","))
		cfg.Jira.Projects = config.SplitList(projects)

		cfg.Staging.Root = prompt(reader, "Staging directory", cfg.Staging.Root)
		cfg.S3.Bucket = prompt(reader, "S3 bucket", cfg.S3.Bucket)
		cfg.S3.Region = prompt(reader, "S3 region", cfg.S3.Region)
		cfg.S3.Prefix = prompt(reader, "S3 key prefix (optional)", cfg.S3.Prefix)
		cfg.S3.AccessKey = prompt(reader, "AWS access key ID (empty for the default credential chain)", cfg.S3.AccessKey)
		if cfg.S3.AccessKey != "" {
			secret, err := promptSecret("AWS secret access key", cfg.S3.SecretKey)
			if err != nil {
				return fmt.Errorf("reading secret key: %w", err)
			}
			cfg.S3.SecretKey = secret
		}

		if err := cfg.ValidateJira(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		if err := config.Save(cfg, path); err != nil {
			return err
		}

		fmt.Printf("Configuration saved to %s\n", path)
		return nil
	},
}

// prompt reads one line, falling back to current when the answer is empty.
func prompt(reader *bufio.Reader, label, current string) string {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, current)
	} else {
		fmt.Printf("%s: ", label)
	}
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return current
	}
	return answer
}

// promptSecret reads masked input; an empty answer keeps current.
func promptSecret(label, current string) (string, error) {
	fmt.Printf("%s (input hidden): ", label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // newline after hidden input
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return current, nil
	}
	return secret, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
}
