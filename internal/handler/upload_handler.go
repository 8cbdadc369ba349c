package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
	"github.com/noah-isme/lms-coursework-api/pkg/response"
	"github.com/noah-isme/lms-coursework-api/pkg/storage"
)

// UploadHandler stores submission attachments and serves them back through
// signed URLs. The returned file_url is what students put on their
// submissions.
type UploadHandler struct {
	files   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	maxSize int64
	logger  *zap.Logger
}

// NewUploadHandler constructs handler.
func NewUploadHandler(files *storage.LocalStorage, signer *storage.SignedURLSigner, maxSize int64, logger *zap.Logger) *UploadHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadHandler{files: files, signer: signer, maxSize: maxSize, logger: logger}
}

// Upload godoc
// @Summary Upload a submission attachment
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	caller, ok := callerFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field required"))
		return
	}
	if h.maxSize > 0 && header.Size > h.maxSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", h.maxSize)))
		return
	}

	src, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close() //nolint:errcheck

	uploadID := uuid.NewString()
	relPath := filepath.Join("submissions", caller.UserID, uploadID+filepath.Ext(header.Filename))
	if _, err := h.files.SaveStream(relPath, src); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
		return
	}

	token, expiresAt, err := h.signer.Generate(uploadID, relPath)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url"))
		return
	}

	h.logger.Sugar().Infow("attachment uploaded", "upload_id", uploadID, "user_id", caller.UserID, "size", header.Size)
	response.Created(c, gin.H{
		"upload_id":  uploadID,
		"file_url":   "/api/v1/uploads/download?token=" + token,
		"expires_at": expiresAt,
	})
}

// Download godoc
// @Summary Download an attachment by signed token
// @Tags Uploads
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /uploads/download [get]
func (h *UploadHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token"))
		return
	}
	c.FileAttachment(h.files.Path(relPath), filepath.Base(relPath))
}
