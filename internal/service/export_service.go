package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-coursework-api/internal/dto"
	"github.com/noah-isme/lms-coursework-api/internal/models"
	"github.com/noah-isme/lms-coursework-api/internal/policy"
	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
	"github.com/noah-isme/lms-coursework-api/pkg/export"
	"github.com/noah-isme/lms-coursework-api/pkg/jobs"
	"github.com/noah-isme/lms-coursework-api/pkg/storage"
)

type exportStatsRepo interface {
	CourseProgress(ctx context.Context, courseID string) ([]models.StudentAssignmentProgress, error)
}

// ExportConfig tunes the background export worker pool and the retention of
// rendered files.
type ExportConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	CleanupInterval   time.Duration
	ResultTTL         time.Duration
}

type exportJob struct {
	response    dto.ExportJobResponse
	requestedBy string
	filename    string
}

// ExportService renders course gradebooks to CSV or PDF in the background.
// Job state lives in memory; a restart forgets queued and finished jobs. The
// rendered files stay on disk until the cleanup loop purges them past
// ResultTTL.
type ExportService struct {
	stats   exportStatsRepo
	courses courseReader
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter

	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	byJobID map[string]*exportJob
}

// NewExportService constructs the service and its worker queue. Call Start
// before enqueueing.
func NewExportService(stats exportStatsRepo, courses courseReader, files *storage.LocalStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		stats:     stats,
		courses:   courses,
		files:     files,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		byJobID:   make(map[string]*exportJob),
	}
	s.queue = jobs.NewQueue("gradebook-export", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker goroutines and, when an interval is configured,
// the retention loop that purges rendered files past ResultTTL.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cfg.CleanupInterval > 0 {
		go s.cleanupLoop(ctx)
	}
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

// cleanupExpired removes rendered files older than ResultTTL and forgets the
// finished jobs that pointed at them, so Status stops advertising downloads
// whose tokens have outlived their files.
func (s *ExportService) cleanupExpired() {
	deleted, err := s.files.CleanupOlderThan(s.cfg.ResultTTL)
	if err != nil {
		s.logger.Sugar().Warnw("export cleanup failed", "error", err)
		return
	}
	if len(deleted) == 0 {
		return
	}

	removed := make(map[string]struct{}, len(deleted))
	for _, name := range deleted {
		removed[name] = struct{}{}
	}
	s.mu.Lock()
	for id, job := range s.byJobID {
		if job.filename == "" {
			continue
		}
		if _, gone := removed[job.filename]; gone {
			delete(s.byJobID, id)
		}
	}
	s.mu.Unlock()

	s.logger.Sugar().Infow("export cleanup removed expired files", "count", len(deleted))
}

// Stop drains the workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue validates the request, checks that the caller may see the course
// gradebook and schedules the export.
func (s *ExportService) Enqueue(ctx context.Context, caller policy.Caller, req dto.GradebookExportRequest) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storeError(err, "failed to load course")
	}
	if !policy.CanGradeSubmission(caller, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
	}

	job := &exportJob{
		response: dto.ExportJobResponse{
			ID:        uuid.NewString(),
			CourseID:  req.CourseID,
			Format:    req.Format,
			Status:    dto.ExportStatusQueued,
			CreatedAt: time.Now().UTC(),
		},
		requestedBy: caller.UserID,
	}

	s.mu.Lock()
	s.byJobID[job.response.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.response.ID, Type: "gradebook_export", Payload: req}); err != nil {
		s.mu.Lock()
		delete(s.byJobID, job.response.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "export queue unavailable")
	}

	s.logger.Sugar().Infow("gradebook export queued", "job_id", job.response.ID, "course_id", req.CourseID, "format", req.Format)
	resp := job.response
	return &resp, nil
}

// Status reports the current state of a job to its requester (or an admin).
func (s *ExportService) Status(_ context.Context, caller policy.Caller, jobID string) (*dto.ExportJobResponse, error) {
	s.mu.RLock()
	job, ok := s.byJobID[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.requestedBy != caller.UserID && !caller.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not your export job")
	}
	s.mu.RLock()
	resp := job.response
	s.mu.RUnlock()
	return &resp, nil
}

// Open resolves a signed download token to the rendered file. The token
// itself carries the authorization, so no caller identity is required.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, relPath, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GradebookExportRequest)
	if !ok {
		s.logger.Sugar().Errorw("unexpected export payload", "job_id", job.ID)
		return nil
	}
	s.setStatus(job.ID, dto.ExportStatusRunning, "")

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return s.fail(job.ID, fmt.Errorf("load course: %w", err))
	}
	rows, err := s.stats.CourseProgress(ctx, req.CourseID)
	if err != nil {
		return s.fail(job.ID, fmt.Errorf("load course progress: %w", err))
	}

	table := gradebookTable(rows)
	var rendered []byte
	switch req.Format {
	case dto.ExportFormatPDF:
		rendered, err = s.pdf.Render(table, fmt.Sprintf("Gradebook %s (%s)", course.Title, course.Code))
	default:
		rendered, err = s.csv.Render(table)
	}
	if err != nil {
		return s.fail(job.ID, fmt.Errorf("render gradebook: %w", err))
	}

	filename := fmt.Sprintf("gradebook_%s_%s.%s", course.Code, job.ID, req.Format)
	if _, err := s.files.Save(filename, rendered); err != nil {
		return s.fail(job.ID, fmt.Errorf("store gradebook: %w", err))
	}
	token, expiresAt, err := s.signer.Generate(job.ID, filename)
	if err != nil {
		return s.fail(job.ID, fmt.Errorf("sign download url: %w", err))
	}

	s.mu.Lock()
	if entry, ok := s.byJobID[job.ID]; ok {
		entry.filename = filename
		entry.response.Status = dto.ExportStatusFinished
		entry.response.Error = ""
		entry.response.DownloadURL = "/api/v1/exports/download?token=" + token
		entry.response.ExpiresAt = &expiresAt
	}
	s.mu.Unlock()

	s.logger.Sugar().Infow("gradebook export finished", "job_id", job.ID, "file", filename, "rows", len(rows))
	return nil
}

func (s *ExportService) setStatus(jobID string, status dto.ExportJobStatus, errMsg string) {
	s.mu.Lock()
	if entry, ok := s.byJobID[jobID]; ok {
		entry.response.Status = status
		entry.response.Error = errMsg
	}
	s.mu.Unlock()
}

func (s *ExportService) fail(jobID string, err error) error {
	s.setStatus(jobID, dto.ExportStatusFailed, err.Error())
	return err
}

// gradebookTable flattens the progress projection into tabular form. The
// instructor view always includes stored scores, released or not.
func gradebookTable(rows []models.StudentAssignmentProgress) export.Table {
	columns := []string{"Student", "Assignment", "Due Date", "Submitted At", "Status", "Score"}
	out := export.Table{Columns: columns, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		submitted := ""
		if row.SubmittedAt != nil {
			submitted = row.SubmittedAt.UTC().Format(time.RFC3339)
		}
		score := ""
		if row.Score != nil {
			score = fmt.Sprintf("%d", *row.Score)
		}
		out.Rows = append(out.Rows, map[string]string{
			"Student":      row.StudentName,
			"Assignment":   row.AssignmentTitle,
			"Due Date":     row.DueDate.UTC().Format(time.RFC3339),
			"Submitted At": submitted,
			"Status":       string(row.ProgressStatus),
			"Score":        score,
		})
	}
	return out
}
