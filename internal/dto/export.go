package dto

import "time"

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportJobStatus tracks the lifecycle of a gradebook export job.
type ExportJobStatus string

const (
	ExportStatusQueued   ExportJobStatus = "queued"
	ExportStatusRunning  ExportJobStatus = "running"
	ExportStatusFinished ExportJobStatus = "finished"
	ExportStatusFailed   ExportJobStatus = "failed"
)

// GradebookExportRequest asks for a course gradebook export.
type GradebookExportRequest struct {
	CourseID string       `json:"course_id" validate:"required"`
	Format   ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse reports job state and, once finished, the signed
// download link.
type ExportJobResponse struct {
	ID          string          `json:"id"`
	CourseID    string          `json:"course_id"`
	Format      ExportFormat    `json:"format"`
	Status      ExportJobStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
	DownloadURL string          `json:"download_url,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
