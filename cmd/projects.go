package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects and how many of their issues carry attachments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadJiraConfig(); err != nil {
			return err
		}
		ctx := cmd.Context()
		client := jira.NewClient(appConfig.Jira)

		projects, err := client.ListProjects(ctx, appConfig.Jira.Projects)
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tNAME\tISSUES WITH ATTACHMENTS")
		for _, p := range projects {
			// One result is enough; only the total matters.
			page, err := client.SearchIssues(ctx, jira.IssueQuery(appConfig.Jira.IssueQuery, p.Key), 0, 1)
			if err != nil {
				fmt.Fprintf(tw, "%s\t%s\terror: %v\n", p.Key, p.Name, err)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\n", p.Key, p.Name, page.Total)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
