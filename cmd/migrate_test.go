package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/config"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/logctx"
	"github.com/dt-pm-tools/jira-attachment-migrator/internal/migrate"
)

// fakeJira serves one project TLH with issue TLH-1 carrying a.png (100 bytes)
// and b.png (declared 50, served 40).
type fakeJira struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeJira) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /rest/api/3/project/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 50, "total": 1,
			"values": []map[string]string{{"id": "1", "key": "TLH", "name": "Test"}},
		})
	})
	mux.HandleFunc("GET /rest/api/3/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PROJECT = 'TLH' AND attachments is not EMPTY", r.URL.Query().Get("jql"))
		base := "http://" + r.Host
		_ = json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 50, "total": 1,
			"issues": []map[string]any{{
				"id": "1001", "key": "TLH-1",
				"fields": map[string]any{"attachment": []map[string]any{
					{"id": "10", "filename": "a.png", "size": 100, "mimeType": "image/png", "content": base + "/secure/attachment/10/a.png"},
					{"id": "11", "filename": "b.png", "size": 50, "mimeType": "image/png", "content": base + "/secure/attachment/11/b.png"},
				}},
			}},
		})
	})
	mux.HandleFunc("GET /secure/attachment/10/a.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 100))
	})
	mux.HandleFunc("GET /secure/attachment/11/b.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("b"), 40))
	})
	mux.HandleFunc("DELETE /rest/api/3/attachment/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func testRunConfig(t *testing.T, jiraURL string) config.Config {
	cfg := config.Default()
	cfg.Jira.URL = jiraURL
	cfg.Jira.Email = "admin@example.com"
	cfg.Jira.Token = "tok"
	cfg.Staging.Root = t.TempDir()
	cfg.Log.WriteToFile = false
	return cfg
}

func setMigrateFlags(t *testing.T, dryRun bool, storeDir string) {
	t.Cleanup(func() {
		migrateDryRun = false
		migrateStoreDir = ""
	})
	migrateDryRun = dryRun
	migrateStoreDir = storeDir
}

func TestRunMigrationEndToEnd(t *testing.T) {
	fj := &fakeJira{}
	srv := httptest.NewServer(fj.handler(t))
	t.Cleanup(srv.Close)

	storeDir := t.TempDir()
	setMigrateFlags(t, false, storeDir)

	cfg := testRunConfig(t, srv.URL)
	cfg.Run.SourceDelete = true
	cfg.S3.Prefix = "jira"
	cfg.Verify.RemoteSize = true
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "ledger.db")

	var logs bytes.Buffer
	ctx := logctx.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))

	sum, err := runMigration(ctx, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Migrated)
	assert.Equal(t, 1, sum.Deleted)
	assert.Equal(t, 1, sum.SizeMismatch)
	assert.Equal(t, []string{"10"}, fj.deleted)

	data, err := os.ReadFile(filepath.Join(storeDir, "jira", "TLH", "TLH-1", "a.png"))
	require.NoError(t, err)
	assert.Len(t, data, 100)
	assert.NoFileExists(t, filepath.Join(storeDir, "jira", "TLH", "TLH-1", "b.png"))
	assert.FileExists(t, filepath.Join(cfg.Staging.Root, "TLH", "TLH-1", "b.png"))

	assert.Contains(t, logs.String(), `msg="Ledger totals" Failed=1 SourceDeleted=1`)
}

func TestRunMigrationDryRun(t *testing.T) {
	fj := &fakeJira{}
	srv := httptest.NewServer(fj.handler(t))
	t.Cleanup(srv.Close)
	setMigrateFlags(t, true, "")

	cfg := testRunConfig(t, srv.URL)
	cfg.Run.SourceDelete = true

	sum, err := runMigration(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Planned)
	assert.Empty(t, fj.deleted)

	entries, err := os.ReadDir(cfg.Staging.Root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunMigrationMissingStagingRoot(t *testing.T) {
	setMigrateFlags(t, false, t.TempDir())
	cfg := testRunConfig(t, "http://127.0.0.1:1")
	cfg.Staging.Root = filepath.Join(t.TempDir(), "missing")

	_, err := runMigration(context.Background(), cfg)
	assert.Error(t, err)
}

func TestValidationViewSkipsBucketWithoutS3(t *testing.T) {
	cfg := testRunConfig(t, "https://example.atlassian.net")
	require.Error(t, validationView(cfg).Validate())

	setMigrateFlags(t, false, t.TempDir())
	assert.NoError(t, validationView(cfg).Validate())
	assert.True(t, cfg.Run.Upload)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, migrate.Summary{Projects: 1, Issues: 1, Attachments: 2, Migrated: 1, Deleted: 1, SizeMismatch: 1, BytesStaged: 140})
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Done migrating files from JIRA\n"))
	assert.Contains(t, out, "migrated:        1")
	assert.Contains(t, out, "size 1")

	buf.Reset()
	printSummary(&buf, migrate.Summary{Projects: 1, Issues: 1, Planned: 2})
	assert.Equal(t, "Dry run: 2 attachments in 1 issues across 1 projects would be transferred\n", buf.String())
}
