package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/service"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
	"github.com/openclass/classroom-api/pkg/response"
)

// AssignmentHandler wires HTTP endpoints to the assignment service.
type AssignmentHandler struct {
	service *service.AssignmentService
	files   *FileHandler
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(svc *service.AssignmentService, files *FileHandler) *AssignmentHandler {
	return &AssignmentHandler{service: svc, files: files}
}

func (h *AssignmentHandler) withDownloadPath(assignment models.Assignment) models.Assignment {
	if assignment.FileURL != nil && *assignment.FileURL != "" {
		signed := h.files.DownloadPath(*assignment.FileURL)
		assignment.FileURL = &signed
	}
	return assignment
}

// Create godoc
// @Summary Create assignment
// @Description Multipart form with optional attached document
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param due_date formData string false "RFC3339 deadline"
// @Param file formData file false "Attached document"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /classes/{id}/assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.CreateAssignmentRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
	}
	if raw := c.PostForm("due_date"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.WithFields(
				appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"),
				map[string]string{"due_date": "must be an RFC3339 timestamp"},
			))
			return
		}
		req.DueDate = &due
	}

	upload, closeUpload, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()

	assignment, err := h.service.Create(c.Request.Context(), actor, c.Param("id"), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.withDownloadPath(*assignment))
}

// Update godoc
// @Summary Update assignment
// @Description Multipart form; a new file replaces the prior one
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Param title formData string false "Title"
// @Param description formData string false "Description"
// @Param due_date formData string false "RFC3339 deadline"
// @Param clear_due_date formData boolean false "Remove the deadline"
// @Param file formData file false "Replacement document"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateAssignmentRequest
	if title, exists := c.GetPostForm("title"); exists {
		req.Title = &title
	}
	if description, exists := c.GetPostForm("description"); exists {
		req.Description = &description
	}
	if raw := c.PostForm("due_date"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.WithFields(
				appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"),
				map[string]string{"due_date": "must be an RFC3339 timestamp"},
			))
			return
		}
		req.DueDate = &due
	}
	if raw := c.PostForm("clear_due_date"); raw != "" {
		clear, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.WithFields(
				appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"),
				map[string]string{"clear_due_date": "must be a boolean"},
			))
			return
		}
		req.ClearDueDate = clear
	}

	upload, closeUpload, err := formUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()

	assignment, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.withDownloadPath(*assignment))
}

// Delete godoc
// @Summary Delete assignment
// @Description Refused while submissions exist
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "assignment deleted")
}

// Get godoc
// @Summary Assignment detail
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignment, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.withDownloadPath(*assignment))
}

// ListByClass godoc
// @Summary List class assignments
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/assignments [get]
func (h *AssignmentHandler) ListByClass(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignments, err := h.service.ListByClass(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	signed := make([]models.Assignment, len(assignments))
	for i, assignment := range assignments {
		signed[i] = h.withDownloadPath(assignment)
	}
	response.JSON(c, http.StatusOK, signed)
}

// formUpload extracts an optional multipart file. The returned closer is
// always safe to defer.
func formUpload(c *gin.Context, field string) (*service.Upload, func(), error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		if errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, func() {}, appErrors.WithFields(
				appErrors.Clone(appErrors.ErrValidation, "uploaded file is too large"),
				map[string]string{field: "exceeds the allowed size"},
			)
		}
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart form")
	}

	file, err := header.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file")
	}
	upload := &service.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Reader:   file,
	}
	return upload, func() { _ = file.Close() }, nil
}
