package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/objectstore"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify JIRA credentials and bucket access",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadJiraConfig(); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		user, err := jira.NewClient(appConfig.Jira).Myself(ctx)
		if err != nil {
			return fmt.Errorf("checking JIRA credentials: %w", err)
		}
		fmt.Fprintf(out, "JIRA: authenticated as %s (%s)\n", user.DisplayName, user.EmailAddress)

		if appConfig.S3.Bucket == "" {
			fmt.Fprintln(out, "S3: no bucket configured, skipped")
			return nil
		}
		store, err := objectstore.NewS3(ctx, appConfig.S3)
		if err != nil {
			return err
		}
		// A missing probe object still proves the bucket is reachable with these credentials.
		probe := objectstore.Key(appConfig.S3.Prefix, ".migrator-check", "probe", "probe")
		if _, err := store.ObjectSize(ctx, probe); err != nil && !errors.Is(err, objectstore.ErrObjectNotFound) {
			return fmt.Errorf("checking bucket %s: %w", appConfig.S3.Bucket, err)
		}
		fmt.Fprintf(out, "S3: bucket %s reachable\n", appConfig.S3.Bucket)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
