package migrate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/objectstore"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/verify"
)

func TestReasonOf(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{nil, ReasonNone},
		{fmt.Errorf("%w: status 404", jira.ErrDownloadFailed), ReasonDownloadFailed},
		{&verify.SizeMismatchError{Where: "local", Expected: 50, Actual: 40}, ReasonSizeMismatch},
		{fmt.Errorf("wrapped: %w", objectstore.ErrUploadFailed), ReasonUploadFailed},
		{fmt.Errorf("%w: status 403", jira.ErrDeleteFailed), ReasonDeleteFailed},
		{errors.New("boom"), ReasonUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReasonOf(tt.err), "%v", tt.err)
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "Discovered", StageDiscovered.String())
	assert.Equal(t, "RemotelyVerified", StageRemotelyVerified.String())
	assert.Equal(t, "Failed", StageFailed.String())
	assert.Equal(t, "Unknown", Stage(42).String())
}

func TestSummaryCounts(t *testing.T) {
	var s Summary
	s.add(Record{Stage: StageSourceDeleted, Bytes: 10})
	s.add(Record{Stage: StageRemotelyVerified, LastError: jira.ErrDeleteFailed, Bytes: 5})
	s.add(Record{Stage: StageLocallyVerified})
	s.add(Record{Stage: StageFailed, LastError: errors.New("disk full")})

	assert.Equal(t, 2, s.Migrated)
	assert.Equal(t, 1, s.Deleted)
	assert.Equal(t, 1, s.DeleteFailed)
	assert.Equal(t, 1, s.StagedOnly)
	assert.Equal(t, 1, s.OtherFailed)
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, int64(15), s.BytesStaged)
}
