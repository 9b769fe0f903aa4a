// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VT-TyR/drivemind/internal/api/handlers"
	"github.com/VT-TyR/drivemind/internal/database"
	"github.com/VT-TyR/drivemind/internal/drive"
	"github.com/VT-TyR/drivemind/internal/models"
	"github.com/VT-TyR/drivemind/internal/services/scan"
)

type staticLister struct {
	files []drive.File
}

func (s *staticLister) ListPage(context.Context, string, drive.ListParams) (*drive.FileList, error) {
	return &drive.FileList{Files: s.files}, nil
}

type staticTokens struct{}

func (staticTokens) GetValidAccessToken(context.Context, string) (string, error) {
	return "test-token", nil
}

type testEnv struct {
	router *chi.Mux
	jobs   *models.ScanJobStore
	index  *models.FileIndexStore
}

func newTestEnv(t *testing.T, lister scan.DriveLister) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	jobs := models.NewScanJobStore(db)
	index := models.NewFileIndexStore(db)
	if lister == nil {
		lister = &staticLister{}
	}

	cfg := scan.DefaultConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.MaxRetryDelay = 5 * time.Millisecond

	service := scan.NewService(cfg, jobs, index, lister, staticTokens{}, nil)
	t.Cleanup(service.Stop)

	router := chi.NewRouter()
	handlers.NewScansHandler(service, scan.NewCleanup(jobs, scan.DefaultRetention, scan.DefaultSweepLimit)).Routes(router)
	handlers.NewIndexHandler(index).Routes(router)

	return &testEnv{router: router, jobs: jobs, index: index}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestStartScanAcceptsAndRuns(t *testing.T) {
	env := newTestEnv(t, &staticLister{files: []drive.File{
		{ID: "f1", Name: "a.txt", MimeType: "text/plain", Size: 10},
	}})

	rec := env.do(t, http.MethodPost, "/owners/owner-1/scans", `{"maxDepth": 1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job models.ScanJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "owner-1", job.OwnerID)
	assert.Equal(t, models.ScanJobStatusPending, job.Status)
	assert.Equal(t, 1, job.Config.MaxDepth)

	// The accepted job runs to completion in the background.
	require.Eventually(t, func() bool {
		got, err := env.jobs.Get(context.Background(), job.ID)
		return err == nil && got.Status == models.ScanJobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartScanRejectsBadBody(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/owners/owner-1/scans", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScanNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/scans/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Scan job not found", resp.Error)
}

func TestGetScanReturnsProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	job, err := env.jobs.Create(ctx, "owner-1", models.ScanConfig{})
	require.NoError(t, err)
	require.NoError(t, env.jobs.ClaimPending(ctx, job.ID))
	require.NoError(t, env.jobs.UpdateProgress(ctx, job.ID, models.ScanProgress{
		Percentage:  42,
		CurrentStep: "Enumerating files",
	}, "cursor"))

	rec := env.do(t, http.MethodGet, "/scans/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.ScanJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.ScanJobStatusRunning, got.Status)
	assert.Equal(t, 42, got.Progress.Percentage)
	assert.Equal(t, "Enumerating files", got.Progress.CurrentStep)
}

func TestListScans(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.jobs.Create(ctx, "owner-1", models.ScanConfig{})
		require.NoError(t, err)
	}

	rec := env.do(t, http.MethodGet, "/owners/owner-1/scans?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []models.ScanJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 2)

	rec = env.do(t, http.MethodGet, "/owners/owner-2/scans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestCancelScan(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	job, err := env.jobs.Create(ctx, "owner-1", models.ScanConfig{})
	require.NoError(t, err)

	rec := env.do(t, http.MethodDelete, "/scans/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanJobStatusCancelled, got.Status)

	rec = env.do(t, http.MethodDelete, "/scans/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerCleanup(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp["deleted"])
}

func TestListFilesWithMimeFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, _, err := env.index.UpsertBatch(ctx, "owner-1", "scan-1", []*models.FileIndexEntry{
		{FileID: "f1", Name: "a.jpg", MimeType: "image/jpeg", Size: 100},
		{FileID: "f2", Name: "b.pdf", MimeType: "application/pdf", Size: 200},
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/owners/owner-1/files?mimeType=image/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []models.FileIndexEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "f1", entries[0].FileID)
}

func TestDuplicateReport(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	var entries []*models.FileIndexEntry
	for i := 0; i < 2; i++ {
		entries = append(entries, &models.FileIndexEntry{
			FileID:   fmt.Sprintf("f%d", i),
			Name:     fmt.Sprintf("copy-%d.pdf", i),
			MimeType: "application/pdf",
			Size:     500,
			Checksum: "same-sum",
		})
	}
	entries = append(entries, &models.FileIndexEntry{
		FileID: "f-unique", Name: "unique.pdf", MimeType: "application/pdf", Size: 300, Checksum: "other",
	})
	_, _, err := env.index.UpsertBatch(ctx, "owner-1", "scan-1", entries)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/owners/owner-1/duplicates", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report handlers.DuplicateReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.GroupCount)
	require.Len(t, report.Groups, 1)
	assert.Len(t, report.Groups[0], 2)
	assert.Equal(t, scan.QualityScore(1, 3), report.QualityScore)
}
