// Copyright (c) 2025-2026, the DriveMind contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scan drives Drive enumeration jobs through a bounded state machine
// to a terminal result: paginated listing, index persistence, duplicate
// detection, and retry with exponential backoff around each attempt.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/VT-TyR/drivemind/internal/drive"
	"github.com/VT-TyR/drivemind/internal/models"
)

// TokenProvider resolves a valid bearer credential for an owner.
type TokenProvider interface {
	GetValidAccessToken(ctx context.Context, ownerID string) (string, error)
}

// DriveLister fetches one page of the remote file listing.
type DriveLister interface {
	ListPage(ctx context.Context, accessToken string, params drive.ListParams) (*drive.FileList, error)
}

// Recorder receives scan outcome metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	JobFinished(status models.ScanJobStatus)
	FilesIndexed(count int)
	DuplicateGroupsFound(count int)
}

type nopRecorder struct{}

func (nopRecorder) JobFinished(models.ScanJobStatus) {}
func (nopRecorder) FilesIndexed(int)                 {}
func (nopRecorder) DuplicateGroupsFound(int)         {}

// Config holds orchestrator tuning.
type Config struct {
	// MaxRetries is the number of re-attempts after the initial one.
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff; the delay before
	// re-attempt n is min(RetryBaseDelay * 2^n, MaxRetryDelay).
	RetryBaseDelay time.Duration
	MaxRetryDelay  time.Duration

	// PageSize is the listing page size requested from the Drive API.
	PageSize int

	// IndexBatchSize bounds each atomic index write.
	IndexBatchSize int

	// JobTimeout is the wall-clock budget enforced by the timeout watchdog.
	JobTimeout time.Duration
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		RetryBaseDelay: 1 * time.Second,
		MaxRetryDelay:  30 * time.Second,
		PageSize:       drive.MaxPageSize,
		IndexBatchSize: defaultIndexBatchSize,
		JobTimeout:     15 * time.Minute,
	}
}

// Service is the scan job orchestrator. It exclusively owns job
// status/progress/results transitions; the index writer exclusively owns
// file index upserts.
type Service struct {
	cfg      Config
	jobs     *models.ScanJobStore
	writer   *IndexWriter
	drive    DriveLister
	tokens   TokenProvider
	detector Detector
	recorder Recorder
	timeouts *TimeoutMonitor

	runWG sync.WaitGroup
}

// NewService creates the orchestrator.
func NewService(cfg Config, jobs *models.ScanJobStore, index *models.FileIndexStore, driveClient DriveLister, tokens TokenProvider, recorder Recorder) *Service {
	def := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.IndexBatchSize <= 0 {
		cfg.IndexBatchSize = def.IndexBatchSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Service{
		cfg:      cfg,
		jobs:     jobs,
		writer:   NewIndexWriter(index, cfg.IndexBatchSize),
		drive:    driveClient,
		tokens:   tokens,
		detector: NewDetector(),
		recorder: recorder,
		timeouts: NewTimeoutMonitor(jobs, cfg.JobTimeout),
	}
}

// StartJob creates a pending job, arms its timeout watchdog, and launches
// RunToCompletion in the background. This is the job-creation trigger.
func (s *Service) StartJob(ctx context.Context, ownerID string, config models.ScanConfig) (*models.ScanJob, error) {
	job, err := s.jobs.Create(ctx, ownerID, config)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.timeouts.Schedule(job.ID)

	s.runWG.Add(1)
	go func() {
		defer s.runWG.Done()
		// Background parent so the run survives the triggering request.
		if _, err := s.RunToCompletion(context.Background(), job.ID); err != nil {
			log.Debug().Err(err).Str("jobID", job.ID).Msg("scan: background run ended with error")
		}
	}()

	return job, nil
}

// Cancel requests cooperative cancellation of a pending or running job. The
// orchestrator observes the persisted status before each page fetch.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	return s.jobs.RequestCancel(ctx, jobID)
}

// GetJob returns a job with its current progress.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.ScanJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// ListJobs lists an owner's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]*models.ScanJob, error) {
	return s.jobs.ListByOwner(ctx, ownerID, limit, offset)
}

// RecoverInterruptedJobs fails jobs a previous process left active. Called
// once at startup, before any new job runs.
func (s *Service) RecoverInterruptedJobs(ctx context.Context) (int64, error) {
	n, err := s.jobs.MarkActiveJobsFailed(ctx, "Scan interrupted by service restart")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Warn().Int64("jobs", n).Msg("scan: failed jobs interrupted by restart")
	}
	return n, nil
}

// Stop waits for in-flight background runs and disarms pending watchdogs.
func (s *Service) Stop() {
	s.runWG.Wait()
	s.timeouts.Stop()
}

// enumeration carries attempt-spanning state so a retry resumes from the
// last successful cursor instead of restarting from page one.
type enumeration struct {
	cursor  string
	done    bool
	entries []*models.FileIndexEntry
	bytes   int64
	pages   int
}

// RunToCompletion drives one job to a terminal persisted state. Whatever
// path it takes, the job never remains running once this returns; the only
// exception is a crash of the process itself, which the timeout watchdog
// and startup recovery cover.
func (s *Service) RunToCompletion(ctx context.Context, jobID string) (*models.ScanResults, error) {
	l := log.With().Str("jobID", jobID).Logger()

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job.OwnerID == "" {
		msg := "job has no owner"
		if err := s.jobs.MarkFailed(context.WithoutCancel(ctx), jobID, msg, nil, job.Progress); err != nil {
			l.Error().Err(err).Msg("scan: failed to persist validation failure")
		}
		s.recorder.JobFinished(models.ScanJobStatusFailed)
		return nil, terminal(errors.New(msg))
	}
	if job.Status == models.ScanJobStatusCancelled {
		return nil, ErrJobCancelled
	}
	if job.Status.IsTerminal() {
		return nil, terminal(fmt.Errorf("job is already %s", job.Status))
	}
	if job.Status == models.ScanJobStatusRunning {
		return nil, ErrJobAlreadyClaimed
	}

	tracker := NewTracker()
	state := &enumeration{cursor: job.PageCursor}
	query := drive.BuildListQuery(job.Config)

	start := time.Now()
	attempts := 0
	claimed := false
	var results *models.ScanResults

	err = retry.Do(
		func() error {
			attempts++
			res, attemptErr := s.runAttempt(ctx, job, query, state, tracker, &claimed, attempts)
			if attemptErr != nil {
				return attemptErr
			}
			results = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(s.cfg.MaxRetries+1)),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return s.backoffDelay(n)
		}),
		retry.OnRetry(func(n uint, err error) {
			l.Warn().Err(err).Uint("failedAttempt", n+1).Dur("backoff", s.backoffDelay(n)).Msg("scan: attempt failed, backing off")
		}),
	)
	if err == nil {
		s.recorder.JobFinished(models.ScanJobStatusCompleted)
		return results, nil
	}

	switch {
	case errors.Is(err, ErrJobCancelled):
		// RequestCancel already wrote the terminal cancelled state.
		l.Info().Msg("scan: job cancelled")
		s.recorder.JobFinished(models.ScanJobStatusCancelled)
		return nil, err
	case errors.Is(err, ErrJobAlreadyClaimed):
		l.Debug().Msg("scan: job claimed by another worker, exiting without writes")
		return nil, err
	case errors.Is(err, models.ErrScanJobNotFound):
		return nil, err
	}

	tracker.SetStep(fmt.Sprintf("Scan failed: %s", err.Error()), 0)
	details := &models.ScanErrorDetails{
		TotalRetries: attempts - 1,
		ElapsedMs:    time.Since(start).Milliseconds(),
	}
	// A failure to persist the terminal write is logged, never swallowed
	// silently; the timeout watchdog remains the backstop.
	if mfErr := s.jobs.MarkFailed(context.WithoutCancel(ctx), jobID, err.Error(), details, tracker.Snapshot()); mfErr != nil {
		l.Error().Err(mfErr).Msg("scan: failed to persist terminal failed state")
	}

	l.Error().Err(err).Int("attempts", attempts).Msg("scan: job failed after exhausting retries")
	s.recorder.JobFinished(models.ScanJobStatusFailed)
	return nil, err
}

// backoffDelay returns the delay before re-attempt n (0-based):
// min(base * 2^(n+1), max), so 2s, 4s, 8s for the default base of 1s.
func (s *Service) backoffDelay(n uint) time.Duration {
	delay := s.cfg.RetryBaseDelay
	for i := uint(0); i <= n; i++ {
		delay *= 2
		if delay >= s.cfg.MaxRetryDelay {
			return s.cfg.MaxRetryDelay
		}
	}
	return delay
}

func (s *Service) runAttempt(ctx context.Context, job *models.ScanJob, query string, state *enumeration, tracker *Tracker, claimed *bool, attempt int) (*models.ScanResults, error) {
	l := log.With().Str("jobID", job.ID).Int("attempt", attempt).Logger()

	// Credential first: the token service can be transiently down, and a
	// permanently revoked consent must surface before any state transition.
	token, err := s.tokens.GetValidAccessToken(ctx, job.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("acquire access token: %w", err)
	}

	if !*claimed {
		if err := s.jobs.ClaimPending(ctx, job.ID); err != nil {
			if errors.Is(err, models.ErrScanJobNotClaimable) {
				return nil, s.classifyClaimLoss(ctx, job.ID)
			}
			return nil, fmt.Errorf("claim job: %w", err)
		}
		*claimed = true
		tracker.SetStep("Initializing scan", 5)
		s.persistProgress(ctx, job.ID, tracker, state.cursor, &l)
	} else if err := s.jobs.ConfirmRunning(ctx, job.ID); err != nil {
		if errors.Is(err, models.ErrScanJobNotClaimable) {
			return nil, s.classifyClaimLoss(ctx, job.ID)
		}
		return nil, fmt.Errorf("confirm running job: %w", err)
	}

	if !state.done {
		if err := s.enumerate(ctx, job, token, query, state, tracker, &l); err != nil {
			return nil, err
		}
		state.done = true
	}

	tracker.SetStep("Updating file index", 92)
	s.persistProgress(ctx, job.ID, tracker, "", &l)

	created, updated, err := s.writer.Persist(ctx, job.OwnerID, job.ID, state.entries)
	if err != nil {
		// Partial batches are fine: upserts are idempotent and the retry
		// attempt completes the sequence.
		return nil, fmt.Errorf("persist file index (created %d, updated %d): %w", created, updated, err)
	}

	tracker.SetStep("Detecting duplicates", 96)
	groups := s.detector.Group(state.entries)
	score := QualityScore(len(groups), len(state.entries))

	results := &models.ScanResults{
		TotalFiles:         len(state.entries),
		TotalBytes:         state.bytes,
		PagesProcessed:     state.pages,
		DuplicateGroups:    len(groups),
		QualityScore:       score,
		RecommendedActions: RecommendActions(len(groups), len(state.entries)),
	}

	tracker.Complete()
	if err := s.jobs.MarkCompleted(ctx, job.ID, results, tracker.Snapshot()); err != nil {
		if errors.Is(err, models.ErrScanJobNotClaimable) {
			return nil, s.classifyClaimLoss(ctx, job.ID)
		}
		return nil, fmt.Errorf("mark job completed: %w", err)
	}

	l.Info().
		Int("files", results.TotalFiles).
		Int64("bytes", results.TotalBytes).
		Int("pages", results.PagesProcessed).
		Int("duplicateGroups", results.DuplicateGroups).
		Int("qualityScore", results.QualityScore).
		Int("indexCreated", created).
		Int("indexUpdated", updated).
		Msg("scan: job completed")

	s.recorder.FilesIndexed(created + updated)
	s.recorder.DuplicateGroupsFound(len(groups))
	return results, nil
}

// enumerate drives the paginated listing to exhaustion, polling the
// persisted status before each page so cooperative cancellation is honored.
func (s *Service) enumerate(ctx context.Context, job *models.ScanJob, token, query string, state *enumeration, tracker *Tracker, l *zerolog.Logger) error {
	tracker.SetStep("Enumerating files", 10)

	for {
		status, err := s.jobs.GetStatus(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("poll job status: %w", err)
		}
		if status == models.ScanJobStatusCancelled {
			return ErrJobCancelled
		}

		page, err := s.drive.ListPage(ctx, token, drive.ListParams{
			PageSize:  s.cfg.PageSize,
			PageToken: state.cursor,
			Query:     query,
		})
		if err != nil {
			if drive.IsAuthError(err) {
				// Propagates immediately; a fresh token next attempt can
				// recover unless consent was revoked.
				return fmt.Errorf("list page %d: %w", state.pages+1, err)
			}
			if drive.IsTransient(err) {
				// The cursor is persisted, so the next attempt resumes this
				// exact page instead of re-enumerating from page one.
				return fmt.Errorf("list page %d: %w", state.pages+1, err)
			}
			return terminal(fmt.Errorf("list page %d: %w", state.pages+1, err))
		}

		var pageBytes int64
		for _, f := range page.Files {
			state.entries = append(state.entries, entryFromFile(job.OwnerID, job.ID, f))
			pageBytes += f.Size
		}
		state.bytes += pageBytes
		state.pages++
		state.cursor = page.NextPageToken

		tracker.RecordPage(len(page.Files), pageBytes)
		s.persistProgress(ctx, job.ID, tracker, state.cursor, l)

		if page.NextPageToken == "" {
			l.Debug().Int("pages", state.pages).Int("files", len(state.entries)).Msg("scan: enumeration complete")
			return nil
		}
	}
}

// persistProgress is best-effort: a progress write failure is logged and
// never escalates to job failure.
func (s *Service) persistProgress(ctx context.Context, jobID string, tracker *Tracker, cursor string, l *zerolog.Logger) {
	if err := s.jobs.UpdateProgress(ctx, jobID, tracker.Snapshot(), cursor); err != nil {
		l.Warn().Err(err).Msg("scan: failed to persist progress")
	}
}

// classifyClaimLoss maps a failed running-state transition to its cause.
func (s *Service) classifyClaimLoss(ctx context.Context, jobID string) error {
	status, err := s.jobs.GetStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("inspect unclaimable job: %w", err)
	}

	switch status {
	case models.ScanJobStatusCancelled:
		return ErrJobCancelled
	case models.ScanJobStatusRunning:
		return ErrJobAlreadyClaimed
	default:
		return terminal(fmt.Errorf("job is already %s", status))
	}
}

func entryFromFile(ownerID, scanID string, f drive.File) *models.FileIndexEntry {
	entry := &models.FileIndexEntry{
		OwnerID:    ownerID,
		FileID:     f.ID,
		Name:       f.Name,
		MimeType:   f.MimeType,
		Size:       f.Size,
		ParentID:   f.ParentID,
		Checksum:   f.Checksum,
		Version:    f.Version,
		LastScanID: scanID,
	}
	if !f.ModifiedTime.IsZero() {
		t := f.ModifiedTime
		entry.ModifiedTime = &t
	}
	return entry
}
