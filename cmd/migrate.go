package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/config"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/ledger"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/logctx"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/migrate"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/objectstore"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/stage"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/verify"
)

var (
	migrateDryRun      bool
	migrateNoUpload    bool
	migrateDelete      bool
	migrateProjects    string
	migrateConcurrency int
	migrateStoreDir    string
	migrateDebug       bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy attachments from JIRA to S3",
	Long: `Lists the configured projects (all projects when none are set), downloads every attachment
into the staging directory, checks its size, and uploads it to the bucket.

Attachments are only deleted from JIRA with --delete-source (or run.source_delete), and only
after the stored copy is verified. Interrupting the run lets transfers already in progress finish.`,
	Example: `  jira-attachment-migrator migrate --dry-run
  jira-attachment-migrator migrate --projects TLH,OPS --concurrency 8
  jira-attachment-migrator migrate --delete-source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(func(cfg *config.Config) { applyMigrateFlags(cmd, cfg) }); err != nil {
			return err
		}

		logger, closeLog, err := setupLogging(appConfig.Log, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer func() { _ = closeLog() }()

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		ctx = logctx.WithLogger(ctx, logger)

		sum, err := runMigration(ctx, appConfig)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				printSummary(cmd.OutOrStdout(), sum)
				return fmt.Errorf("migration interrupted")
			}
			return err
		}
		printSummary(cmd.OutOrStdout(), sum)
		if sum.Failed() > 0 || sum.ProjectsFailed > 0 {
			return fmt.Errorf("%d attachments and %d projects failed, see the log for details", sum.Failed(), sum.ProjectsFailed)
		}
		return nil
	},
}

func applyMigrateFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("no-upload") {
		cfg.Run.Upload = !migrateNoUpload
	}
	if flags.Changed("delete-source") {
		cfg.Run.SourceDelete = migrateDelete
	}
	if flags.Changed("projects") {
		cfg.Jira.Projects = config.SplitList(migrateProjects)
	}
	if flags.Changed("concurrency") {
		cfg.Workers.Concurrency = max(migrateConcurrency, 1)
	}
	if migrateDebug {
		cfg.Log.Debug = true
	}
}

// validationView is the config as Validate should see it: runs that never
// reach S3 do not need bucket settings.
func validationView(cfg config.Config) config.Config {
	if migrateDryRun || migrateStoreDir != "" {
		cfg.Run.Upload = false
	}
	return cfg
}

// runMigration wires the components from cfg and runs one migration.
func runMigration(ctx context.Context, cfg config.Config) (migrate.Summary, error) {
	ll := logctx.FromContext(ctx)

	stg, err := stage.New(cfg.Staging.Root)
	if err != nil {
		return migrate.Summary{}, err
	}

	var store objectstore.Store
	switch {
	case !cfg.Run.Upload || migrateDryRun:
	case migrateStoreDir != "":
		store = objectstore.NewFileStore(migrateStoreDir)
	default:
		s3Store, err := objectstore.NewS3(ctx, cfg.S3)
		if err != nil {
			return migrate.Summary{}, err
		}
		store = s3Store
	}

	var options []migrate.Option
	if cfg.Verify.RemoteSize && store != nil {
		options = append(options, migrate.WithRemoteVerifier(verify.ObjectSize{Store: store}))
	}
	var l *ledger.Ledger
	if cfg.Ledger.Path != "" && !migrateDryRun {
		l, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return migrate.Summary{}, err
		}
		defer func() { _ = l.Close() }()
		options = append(options, migrate.WithLedger(l))
	}

	ll.Info("Starting migration",
		slog.Any("projects", cfg.Jira.Projects),
		slog.Bool("upload", cfg.Run.Upload),
		slog.Bool("deleteSource", cfg.Run.SourceDelete),
		slog.Bool("dryRun", migrateDryRun),
		slog.Int("concurrency", cfg.Workers.Concurrency),
		slog.String("staging", stg.Root()),
	)

	o := migrate.New(jira.NewClient(cfg.Jira), stg, store, migrate.Options{
		Projects:        cfg.Jira.Projects,
		RunUpload:       cfg.Run.Upload,
		RunSourceDelete: cfg.Run.SourceDelete,
		Prefix:          cfg.S3.Prefix,
		Concurrency:     cfg.Workers.Concurrency,
		QueueSize:       cfg.Workers.QueueSize,
		DryRun:          migrateDryRun,
		SkipCompleted:   cfg.Ledger.SkipCompleted,
	}, options...)

	sum, err := o.Run(ctx)
	if l != nil {
		logLedgerTotals(context.WithoutCancel(ctx), l)
	}
	return sum, err
}

// logLedgerTotals reports how many attachments sit in each stage across all
// runs recorded in the ledger.
func logLedgerTotals(ctx context.Context, l *ledger.Ledger) {
	ll := logctx.FromContext(ctx)
	counts, err := l.CountByStage(ctx)
	if err != nil {
		ll.Warn("Failed to read ledger totals", slog.Any("error", err))
		return
	}
	attrs := make([]any, 0, len(counts))
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		attrs = append(attrs, slog.Int(name, counts[name]))
	}
	ll.Info("Ledger totals", attrs...)
}

func printSummary(w io.Writer, s migrate.Summary) {
	if s.Planned > 0 {
		fmt.Fprintf(w, "Dry run: %d attachments in %d issues across %d projects would be transferred\n", s.Planned, s.Issues, s.Projects)
		return
	}
	fmt.Fprintln(w, "Done migrating files from JIRA")
	fmt.Fprintf(w, "  projects:        %d (%d failed)\n", s.Projects, s.ProjectsFailed)
	fmt.Fprintf(w, "  issues:          %d\n", s.Issues)
	fmt.Fprintf(w, "  attachments:     %d\n", s.Attachments)
	fmt.Fprintf(w, "  migrated:        %d\n", s.Migrated)
	fmt.Fprintf(w, "  staged only:     %d\n", s.StagedOnly)
	fmt.Fprintf(w, "  deleted:         %d (%d failed)\n", s.Deleted, s.DeleteFailed)
	fmt.Fprintf(w, "  failed:          %d (download %d, size %d, upload %d, other %d)\n",
		s.Failed(), s.DownloadFailed, s.SizeMismatch, s.UploadFailed, s.OtherFailed)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  skipped:         %d\n", s.Skipped)
	}
	if s.Cancelled {
		fmt.Fprintf(w, "  not started:     %d (interrupted)\n", s.NotStarted)
	}
	fmt.Fprintf(w, "  bytes staged:    %d\n", s.BytesStaged)
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list what would be transferred without downloading anything")
	migrateCmd.Flags().BoolVar(&migrateNoUpload, "no-upload", false, "only download and verify into the staging directory")
	migrateCmd.Flags().BoolVar(&migrateDelete, "delete-source", false, "delete each attachment from JIRA after its upload is verified")
	migrateCmd.Flags().StringVar(&migrateProjects, "projects", "", "comma separated project keys (default: config, or all projects)")
	migrateCmd.Flags().IntVar(&migrateConcurrency, "concurrency", 0, "number of parallel transfers")
	migrateCmd.Flags().StringVar(&migrateStoreDir, "store-dir", "", "write objects to this directory instead of S3")
	migrateCmd.Flags().BoolVar(&migrateDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(migrateCmd)
}
