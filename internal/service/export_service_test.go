package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-coursework-api/internal/dto"
	"github.com/noah-isme/lms-coursework-api/internal/models"
	"github.com/noah-isme/lms-coursework-api/internal/policy"
	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
	"github.com/noah-isme/lms-coursework-api/pkg/jobs"
	"github.com/noah-isme/lms-coursework-api/pkg/storage"
)

func newExportFixture(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	score := 88
	submittedAt := dueDate.Add(-time.Hour)
	stats := &mockStatsRepo{courseProgress: map[string][]models.StudentAssignmentProgress{
		"course-1": {
			{AssignmentID: "as-1", AssignmentTitle: "Essay", CourseID: "course-1", UserID: "student-1", StudentName: "Alex Student", DueDate: dueDate, SubmittedAt: &submittedAt, Score: &score, ProgressStatus: models.ProgressGraded},
			{AssignmentID: "as-1", AssignmentTitle: "Essay", CourseID: "course-1", UserID: "student-2", StudentName: "Bo Student", DueDate: dueDate, ProgressStatus: models.ProgressNotSubmitted},
		},
	}}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Algebra", Code: "MATH101", InstructorID: "teacher-1"},
	}}
	svc := NewExportService(stats, courses, store, signer, nil, nil, ExportConfig{WorkerConcurrency: 1, WorkerRetries: 1})
	return svc, store
}

func TestEnqueueForbiddenForStudent(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.Enqueue(context.Background(), student, dto.GradebookExportRequest{CourseID: "course-1", Format: dto.ExportFormatCSV})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnqueueValidatesFormat(t *testing.T) {
	svc, _ := newExportFixture(t)

	_, err := svc.Enqueue(context.Background(), instructor, dto.GradebookExportRequest{CourseID: "course-1", Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnqueueAndProcessCSV(t *testing.T) {
	svc, store := newExportFixture(t)
	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Enqueue(ctx, instructor, dto.GradebookExportRequest{CourseID: "course-1", Format: dto.ExportFormatCSV})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	deadline := time.After(5 * time.Second)
	for {
		status, err := svc.Status(ctx, instructor, job.ID)
		require.NoError(t, err)
		if status.Status == dto.ExportStatusFinished {
			require.NotEmpty(t, status.DownloadURL)
			require.NotNil(t, status.ExpiresAt)
			break
		}
		if status.Status == dto.ExportStatusFailed {
			t.Fatalf("export failed: %s", status.Error)
		}
		select {
		case <-deadline:
			t.Fatal("export did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	entries, err := os.ReadDir(store.Path(""))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestProcessRendersPDF(t *testing.T) {
	svc, store := newExportFixture(t)
	req := dto.GradebookExportRequest{CourseID: "course-1", Format: dto.ExportFormatPDF}

	svc.byJobID["job-pdf"] = &exportJob{
		response:    dto.ExportJobResponse{ID: "job-pdf", CourseID: req.CourseID, Format: req.Format, Status: dto.ExportStatusQueued, CreatedAt: time.Now().UTC()},
		requestedBy: instructor.UserID,
	}

	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: "job-pdf", Type: "gradebook_export", Payload: req}))

	status, err := svc.Status(context.Background(), instructor, "job-pdf")
	require.NoError(t, err)
	assert.Equal(t, dto.ExportStatusFinished, status.Status)

	info, err := os.Stat(store.Path("gradebook_MATH101_job-pdf.pdf"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestStatusHiddenFromOtherCallers(t *testing.T) {
	svc, _ := newExportFixture(t)
	svc.byJobID["job-1"] = &exportJob{response: dto.ExportJobResponse{ID: "job-1", Status: dto.ExportStatusQueued}, requestedBy: "teacher-1"}

	_, err := svc.Status(context.Background(), policy.Caller{UserID: "teacher-2", Role: models.RoleTeacher}, "job-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Status(context.Background(), admin, "job-1")
	require.NoError(t, err)
}

func TestCleanupPurgesExpiredExports(t *testing.T) {
	svc, store := newExportFixture(t)
	svc.cfg.ResultTTL = time.Hour

	stale, err := store.Save("gradebook_MATH101_job-old.csv", []byte("Student\n"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(stale), past, past))

	fresh, err := store.Save("gradebook_MATH101_job-new.csv", []byte("Student\n"))
	require.NoError(t, err)

	svc.byJobID["job-old"] = &exportJob{
		response:    dto.ExportJobResponse{ID: "job-old", Status: dto.ExportStatusFinished},
		requestedBy: instructor.UserID,
		filename:    stale,
	}
	svc.byJobID["job-new"] = &exportJob{
		response:    dto.ExportJobResponse{ID: "job-new", Status: dto.ExportStatusFinished},
		requestedBy: instructor.UserID,
		filename:    fresh,
	}

	svc.cleanupExpired()

	_, err = os.Stat(store.Path(stale))
	assert.True(t, os.IsNotExist(err))
	_, err = svc.Status(context.Background(), instructor, "job-old")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = os.Stat(store.Path(fresh))
	assert.NoError(t, err)
	status, err := svc.Status(context.Background(), instructor, "job-new")
	require.NoError(t, err)
	assert.Equal(t, dto.ExportStatusFinished, status.Status)
}
