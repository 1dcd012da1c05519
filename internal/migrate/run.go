package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/logctx"
)

// Summary counts the outcomes of one run.
type Summary struct {
	Projects       int
	ProjectsFailed int
	Issues         int
	Attachments    int // discovered

	Migrated       int // stored in the object store and verified
	StagedOnly     int // verified locally with upload disabled
	Deleted        int // removed from JIRA after migration
	DeleteFailed   int
	DownloadFailed int
	SizeMismatch   int
	UploadFailed   int
	OtherFailed    int

	Skipped    int // already completed according to the ledger
	NotStarted int // discovered but dropped because the run was cancelled
	Planned    int // dry run only

	BytesStaged int64
	Cancelled   bool
}

// Failed is the number of attachments that ended in the Failed stage.
func (s Summary) Failed() int {
	return s.DownloadFailed + s.SizeMismatch + s.UploadFailed + s.OtherFailed
}

func (s *Summary) add(rec Record) {
	s.BytesStaged += rec.Bytes
	switch rec.Stage {
	case StageFailed:
		switch rec.Reason() {
		case ReasonDownloadFailed:
			s.DownloadFailed++
		case ReasonSizeMismatch:
			s.SizeMismatch++
		case ReasonUploadFailed:
			s.UploadFailed++
		default:
			s.OtherFailed++
		}
	case StageLocallyVerified:
		s.StagedOnly++
	case StageRemotelyVerified:
		s.Migrated++
		if rec.Reason() == ReasonDeleteFailed {
			s.DeleteFailed++
		}
	case StageSourceDeleted:
		s.Migrated++
		s.Deleted++
	}
}

// Run lists every configured project, discovers attachments, and transfers
// them on a bounded worker pool. Only a failure to list projects is returned
// as an error; every other failure is logged, counted, and skipped.
//
// Cancelling ctx stops discovery and keeps workers from starting queued
// transfers. Transfers already running finish on a context that ignores the
// cancellation. The returned error is then ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	ll := logctx.FromContext(ctx)
	var sum Summary

	projects, err := o.source.ListProjects(ctx, o.opts.Projects)
	if err != nil {
		return sum, fmt.Errorf("listing projects: %w", err)
	}
	sum.Projects = len(projects)
	ll.Info("Number of projects to process", slog.Int("count", len(projects)))

	var mu sync.Mutex
	record := func(rec Record) {
		mu.Lock()
		defer mu.Unlock()
		sum.add(rec)
		if o.onDone != nil {
			o.onDone(rec)
		}
	}

	jobs := make(chan Job, o.opts.QueueSize)
	transferCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i := 0; i < o.opts.Concurrency; i++ {
		g.Go(func() error {
			for job := range jobs {
				if ctx.Err() != nil {
					mu.Lock()
					sum.NotStarted++
					mu.Unlock()
					continue
				}
				rec := o.Transfer(transferCtx, job)
				o.finish(transferCtx, rec)
				record(rec)
			}
			return nil
		})
	}

	o.discover(ctx, projects, jobs, &sum, &mu)
	close(jobs)
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		sum.Cancelled = true
		ll.Warn("Run cancelled, in-flight transfers completed", slog.Int("notStarted", sum.NotStarted))
		return sum, err
	}

	ll.Info("Done migrating files from JIRA",
		slog.Int("migrated", sum.Migrated),
		slog.Int("stagedOnly", sum.StagedOnly),
		slog.Int("deleted", sum.Deleted),
		slog.Int("failed", sum.Failed()),
		slog.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

// discover walks projects and issues and feeds jobs into the queue, blocking
// while the queue is full.
func (o *Orchestrator) discover(ctx context.Context, projects []jira.Project, jobs chan<- Job, sum *Summary, mu *sync.Mutex) {
	count := func(fn func(s *Summary)) {
		mu.Lock()
		fn(sum)
		mu.Unlock()
	}

	for _, p := range projects {
		if ctx.Err() != nil {
			return
		}

		pctx, ll := logctx.With(ctx, slog.String("project", p.Key))
		ll.Info("Starting project")

		issues, err := o.source.ListIssues(pctx, p.Key)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return
			}
			ll.Error("Listing issues failed, skipping project", slog.Any("error", err))
			count(func(s *Summary) { s.ProjectsFailed++ })
			continue
		}
		ll.Info("Project has tickets with attachments", slog.Int("tickets", len(issues)))
		count(func(s *Summary) { s.Issues += len(issues) })

		for _, issue := range issues {
			ll.Info("Ticket has attachments", slog.String("issue", issue.Key), slog.Int("attachments", len(issue.Fields.Attachment)))

			for _, att := range issue.Fields.Attachment {
				job := Job{ProjectKey: p.Key, IssueKey: issue.Key, Attachment: att}
				count(func(s *Summary) { s.Attachments++ })

				if o.opts.DryRun {
					ll.Info("Would transfer attachment",
						slog.String("issue", issue.Key),
						slog.String("filename", att.Filename),
						slog.Int64("size", att.Size),
					)
					count(func(s *Summary) { s.Planned++ })
					continue
				}

				if o.completed(pctx, job) {
					ll.Info("Already migrated, skipping", slog.String("issue", issue.Key), slog.String("filename", att.Filename))
					count(func(s *Summary) { s.Skipped++ })
					continue
				}

				if ctx.Err() != nil {
					count(func(s *Summary) { s.NotStarted++ })
					return
				}
				select {
				case jobs <- job:
				case <-ctx.Done():
					count(func(s *Summary) { s.NotStarted++ })
					return
				}
			}
		}
	}
}
