package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
	"github.com/openclass/classroom-api/internal/service"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
	"github.com/openclass/classroom-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, actor policy.Actor, assignmentID string, upload *service.Upload) (*service.SubmitResult, error)
	List(ctx context.Context, actor policy.Actor, assignmentID string) ([]models.SubmissionDetail, error)
	ExportReport(ctx context.Context, actor policy.Actor, assignmentID, format string) ([]byte, string, string, error)
	MySubmission(ctx context.Context, actor policy.Actor, assignmentID string) (*models.Submission, error)
	Grade(ctx context.Context, actor policy.Actor, submissionID string, req service.GradeSubmissionRequest) (*models.Submission, error)
}

// SubmissionHandler wires HTTP endpoints to the submission service.
type SubmissionHandler struct {
	service submissionService
	files   *FileHandler
}

// NewSubmissionHandler creates a new handler.
func NewSubmissionHandler(svc submissionService, files *FileHandler) *SubmissionHandler {
	return &SubmissionHandler{service: svc, files: files}
}

// Submit godoc
// @Summary Submit assignment work
// @Description Multipart upload; resubmitting overwrites the prior submission
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param file formData file true "Submitted work"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/submit [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	upload, closeUpload, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()

	result, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, h.withDownloadPath(*result.Submission))
}

// List godoc
// @Summary List assignment submissions
// @Description All submissions with student names, owner only
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submissions, err := h.service.List(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	for i := range submissions {
		submissions[i].FileURL = h.files.DownloadPath(submissions[i].FileURL)
	}
	response.JSON(c, http.StatusOK, submissions)
}

// Export godoc
// @Summary Export submission report
// @Description Render the submission list as CSV or PDF
// @Tags Submissions
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/{id}/submissions/export [get]
func (h *SubmissionHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	content, contentType, filename, err := h.service.ExportReport(c.Request.Context(), actor, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(http.StatusOK, contentType, content)
}

// MySubmission godoc
// @Summary Own submission
// @Description The acting student's submission for an assignment
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/my-submission [get]
func (h *SubmissionHandler) MySubmission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.service.MySubmission(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.withDownloadPath(*submission))
}

// Grade godoc
// @Summary Grade submission
// @Description Set score and feedback; regrading overwrites
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param payload body service.GradeSubmissionRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /submissions/{id}/grade [post]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload"))
		return
	}

	submission, err := h.service.Grade(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.withDownloadPath(*submission))
}

func (h *SubmissionHandler) withDownloadPath(submission models.Submission) models.Submission {
	submission.FileURL = h.files.DownloadPath(submission.FileURL)
	return submission
}
