package migrate

import (
	"errors"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/objectstore"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/verify"
)

// Stage is a point in an attachment's transfer.
type Stage int

const (
	StageDiscovered Stage = iota
	StageDownloaded
	StageLocallyVerified
	StageUploaded
	StageRemotelyVerified
	StageSourceDeleted
	StageFailed
)

var stageNames = [...]string{
	StageDiscovered:       "Discovered",
	StageDownloaded:       "Downloaded",
	StageLocallyVerified:  "LocallyVerified",
	StageUploaded:         "Uploaded",
	StageRemotelyVerified: "RemotelyVerified",
	StageSourceDeleted:    "SourceDeleted",
	StageFailed:           "Failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "Unknown"
	}
	return stageNames[s]
}

// Reason classifies why a transfer failed.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonDownloadFailed Reason = "DownloadFailed"
	ReasonSizeMismatch   Reason = "SizeMismatch"
	ReasonUploadFailed   Reason = "UploadFailed"
	ReasonDeleteFailed   Reason = "DeleteFailed"
	ReasonUnknown        Reason = "Unknown"
)

// ReasonOf maps an error from any pipeline step onto the failure taxonomy.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, jira.ErrDownloadFailed):
		return ReasonDownloadFailed
	case errors.Is(err, verify.ErrSizeMismatch):
		return ReasonSizeMismatch
	case errors.Is(err, objectstore.ErrUploadFailed):
		return ReasonUploadFailed
	case errors.Is(err, jira.ErrDeleteFailed):
		return ReasonDeleteFailed
	}
	return ReasonUnknown
}

// Job is one discovered attachment.
type Job struct {
	ProjectKey string
	IssueKey   string
	Attachment jira.Attachment
}

// Record is the transient state of one transfer. It lives only as long as the
// run that produced it.
type Record struct {
	Job        Job
	Stage      Stage
	LastError  error
	StagedPath string
	Bytes      int64
	ObjectKey  string
	ObjectURL  string
}

// Reason classifies LastError.
func (r Record) Reason() Reason {
	return ReasonOf(r.LastError)
}

// Migrated reports whether the attachment is durably stored in the object store.
func (r Record) Migrated() bool {
	return r.Stage == StageRemotelyVerified || r.Stage == StageSourceDeleted
}

func (r Record) fail(err error) Record {
	r.Stage = StageFailed
	r.LastError = err
	return r
}
