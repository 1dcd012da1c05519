// Package migrate drives attachments from JIRA through local staging into the
// object store.
package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/ledger"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/logctx"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/objectstore"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/stage"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/verify"
)

// Source is the part of the JIRA client the orchestrator uses. It must be
// safe for concurrent use.
type Source interface {
	ListProjects(ctx context.Context, keys []string) ([]jira.Project, error)
	ListIssues(ctx context.Context, projectKey string) ([]jira.Issue, error)
	FetchAttachment(ctx context.Context, contentURL string) (io.ReadCloser, error)
	DeleteAttachment(ctx context.Context, id string) error
}

// Ledger persists transfer outcomes across runs.
type Ledger interface {
	Get(ctx context.Context, projectKey, issueKey, filename string) (ledger.Entry, bool, error)
	Put(ctx context.Context, e ledger.Entry) error
}

// Options are the policy settings of a run.
type Options struct {
	Projects        []string // empty means all projects
	RunUpload       bool
	RunSourceDelete bool
	Prefix          string
	Concurrency     int
	QueueSize       int
	DryRun          bool
	SkipCompleted   bool
}

// Orchestrator runs the per-attachment state machine.
type Orchestrator struct {
	source Source
	stage  *stage.Stage
	store  objectstore.Store
	remote verify.Remote
	ledger Ledger
	onDone func(Record)
	opts   Options
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRemoteVerifier replaces the default always-pass remote check.
func WithRemoteVerifier(v verify.Remote) Option {
	return func(o *Orchestrator) {
		o.remote = v
	}
}

// WithLedger records every outcome and enables SkipCompleted.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) {
		o.ledger = l
	}
}

// WithRecordHook is called once per attachment with its final record. Calls
// are serialized.
func WithRecordHook(fn func(Record)) Option {
	return func(o *Orchestrator) {
		o.onDone = fn
	}
}

// New builds an Orchestrator. store may be nil when uploads are disabled.
func New(source Source, stg *stage.Stage, store objectstore.Store, opts Options, options ...Option) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	o := &Orchestrator{
		source: source,
		stage:  stg,
		store:  store,
		remote: verify.AlwaysPass{},
		opts:   opts,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Transfer drives one attachment to a terminal stage. It never returns an
// error; failures are carried in the record so siblings keep going.
func (o *Orchestrator) Transfer(ctx context.Context, job Job) Record {
	att := job.Attachment
	ctx, ll := logctx.With(ctx,
		slog.String("project", job.ProjectKey),
		slog.String("issue", job.IssueKey),
		slog.String("filename", att.Filename),
	)
	rec := Record{Job: job, Stage: StageDiscovered}

	unlock := o.stage.Lock(job.ProjectKey, job.IssueKey, att.Filename)
	defer unlock()

	ll.Info("Processing attachment", slog.String("attachmentID", att.ID), slog.Int64("size", att.Size))

	path, n, err := o.download(ctx, job)
	if err != nil {
		ll.Error("Download failed", slog.Any("error", err))
		return rec.fail(err)
	}
	rec.Stage, rec.StagedPath, rec.Bytes = StageDownloaded, path, n

	if err := verify.Local(att.Size, path); err != nil {
		// The staged copy stays on disk for inspection.
		ll.Error("Filesize does not match", slog.Int64("expected", att.Size), slog.Int64("actual", n), slog.String("path", path))
		return rec.fail(err)
	}
	rec.Stage = StageLocallyVerified

	if !o.opts.RunUpload {
		ll.Info("Upload disabled, attachment kept in staging", slog.String("path", path))
		return rec
	}

	if o.store == nil {
		return rec.fail(fmt.Errorf("%w: no object store configured", objectstore.ErrUploadFailed))
	}

	key := objectstore.Key(o.opts.Prefix, job.ProjectKey, job.IssueKey, att.Filename)
	url, err := o.store.Upload(ctx, key, path, att.MimeType)
	if err != nil {
		ll.Error("Attachment was not uploaded", slog.String("key", key), slog.Any("error", err))
		return rec.fail(err)
	}
	rec.Stage, rec.ObjectKey, rec.ObjectURL = StageUploaded, key, url
	ll.Info("Attachment uploaded", slog.String("key", key), slog.String("url", url))

	if err := o.remote.VerifyRemote(ctx, key, att.Size); err != nil {
		ll.Error("Stored object does not match the local copy", slog.String("key", key), slog.Any("error", err))
		return rec.fail(err)
	}
	rec.Stage = StageRemotelyVerified

	if !o.opts.RunSourceDelete {
		return rec
	}

	if err := o.source.DeleteAttachment(ctx, att.ID); err != nil {
		// The object is already stored; a failed delete does not undo the migration.
		ll.Warn("Attachment could not be deleted from JIRA", slog.String("attachmentID", att.ID), slog.Any("error", err))
		rec.LastError = err
		return rec
	}
	rec.Stage = StageSourceDeleted
	ll.Info("Attachment deleted from JIRA", slog.String("attachmentID", att.ID))

	return rec
}

func (o *Orchestrator) download(ctx context.Context, job Job) (string, int64, error) {
	att := job.Attachment
	if _, err := o.stage.Path(job.ProjectKey, job.IssueKey, att.Filename); err != nil {
		return "", 0, fmt.Errorf("%w: %w", jira.ErrDownloadFailed, err)
	}

	body, err := o.source.FetchAttachment(ctx, att.Content)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = body.Close() }()

	path, n, err := o.stage.Write(job.ProjectKey, job.IssueKey, att.Filename, body)
	if err != nil {
		return "", n, fmt.Errorf("%w: %w", jira.ErrDownloadFailed, err)
	}
	downloadedBytes.Add(ctx, n)
	return path, n, nil
}

func (o *Orchestrator) finish(ctx context.Context, rec Record) {
	transferCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", rec.Stage.String()),
		attribute.String("reason", string(rec.Reason())),
	))

	if o.ledger != nil {
		e := ledger.Entry{
			ProjectKey:   rec.Job.ProjectKey,
			IssueKey:     rec.Job.IssueKey,
			Filename:     rec.Job.Attachment.Filename,
			AttachmentID: rec.Job.Attachment.ID,
			Size:         rec.Job.Attachment.Size,
			Stage:        rec.Stage.String(),
			ObjectKey:    rec.ObjectKey,
		}
		if rec.LastError != nil {
			e.LastError = rec.LastError.Error()
		}
		if err := o.ledger.Put(ctx, e); err != nil {
			logctx.FromContext(ctx).Warn("Failed to record transfer in ledger", slog.Any("error", err))
		}
	}
}

// completed reports whether the ledger shows this exact attachment already done.
func (o *Orchestrator) completed(ctx context.Context, job Job) bool {
	if o.ledger == nil || !o.opts.SkipCompleted {
		return false
	}
	e, found, err := o.ledger.Get(ctx, job.ProjectKey, job.IssueKey, job.Attachment.Filename)
	if err != nil {
		logctx.FromContext(ctx).Warn("Failed to read ledger, transferring anyway", slog.Any("error", err))
		return false
	}
	if !found || e.AttachmentID != job.Attachment.ID || e.Size != job.Attachment.Size {
		return false
	}
	switch e.Stage {
	case StageSourceDeleted.String():
		return true
	case StageRemotelyVerified.String():
		return !o.opts.RunSourceDelete
	case StageLocallyVerified.String():
		return !o.opts.RunUpload
	}
	return false
}
