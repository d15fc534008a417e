package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/middleware"
	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/policy"
	"github.com/openclass/classroom-api/internal/service"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
	"github.com/openclass/classroom-api/pkg/storage"
)

type submissionServiceMock struct {
	submitResp *service.SubmitResult
	submitErr  error
	gradeResp  *models.Submission
	gradeErr   error
	gradeReq   service.GradeSubmissionRequest
	myResp     *models.Submission
	myErr      error
}

func (m *submissionServiceMock) Submit(ctx context.Context, actor policy.Actor, assignmentID string, upload *service.Upload) (*service.SubmitResult, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.submitResp, nil
}

func (m *submissionServiceMock) List(ctx context.Context, actor policy.Actor, assignmentID string) ([]models.SubmissionDetail, error) {
	return nil, nil
}

func (m *submissionServiceMock) ExportReport(ctx context.Context, actor policy.Actor, assignmentID, format string) ([]byte, string, string, error) {
	return []byte("Student,Score\n"), "text/csv", "submissions-a1.csv", nil
}

func (m *submissionServiceMock) MySubmission(ctx context.Context, actor policy.Actor, assignmentID string) (*models.Submission, error) {
	if m.myErr != nil {
		return nil, m.myErr
	}
	return m.myResp, nil
}

func (m *submissionServiceMock) Grade(ctx context.Context, actor policy.Actor, submissionID string, req service.GradeSubmissionRequest) (*models.Submission, error) {
	m.gradeReq = req
	if m.gradeErr != nil {
		return nil, m.gradeErr
	}
	return m.gradeResp, nil
}

func testFileHandler(t *testing.T) *FileHandler {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("handler-test-secret", time.Minute)
	return NewFileHandler(store, signer, "/v1/files", zap.NewNop())
}

func submissionTestContext(t *testing.T, w *httptest.ResponseRecorder, claims *models.JWTClaims) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestSubmissionHandlerSubmitCreated(t *testing.T) {
	mock := &submissionServiceMock{submitResp: &service.SubmitResult{
		Submission: &models.Submission{
			ID:           "sub-1",
			AssignmentID: "a1",
			StudentID:    "s1",
			FileURL:      "submissions/a1/essay.pdf",
			Status:       models.SubmissionStatusPending,
		},
		Created: true,
	}}
	handler := NewSubmissionHandler(mock, testFileHandler(t))

	w := httptest.NewRecorder()
	c := submissionTestContext(t, w, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	body, contentType := multipartUpload(t, "file", "essay.pdf", "draft one")
	req, _ := http.NewRequest(http.MethodPost, "/assignments/a1/submit", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "success", envelope["status"])
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "sub-1", data["id"])
	assert.Contains(t, data["file_url"], "/v1/files/")
}

func TestSubmissionHandlerResubmitReturnsOK(t *testing.T) {
	mock := &submissionServiceMock{submitResp: &service.SubmitResult{
		Submission: &models.Submission{ID: "sub-1", Status: models.SubmissionStatusPending},
		Created:    false,
	}}
	handler := NewSubmissionHandler(mock, testFileHandler(t))

	w := httptest.NewRecorder()
	c := submissionTestContext(t, w, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	body, contentType := multipartUpload(t, "file", "essay.pdf", "draft two")
	req, _ := http.NewRequest(http.MethodPost, "/assignments/a1/submit", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.Submit(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmissionHandlerSubmitUnauthenticated(t *testing.T) {
	handler := NewSubmissionHandler(&submissionServiceMock{}, testFileHandler(t))

	w := httptest.NewRecorder()
	c := submissionTestContext(t, w, nil)
	req, _ := http.NewRequest(http.MethodPost, "/assignments/a1/submit", nil)
	c.Request = req

	handler.Submit(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmissionHandlerGrade(t *testing.T) {
	score := 88
	mock := &submissionServiceMock{gradeResp: &models.Submission{
		ID:     "sub-1",
		Status: models.SubmissionStatusGraded,
		Score:  &score,
	}}
	handler := NewSubmissionHandler(mock, testFileHandler(t))

	w := httptest.NewRecorder()
	c := submissionTestContext(t, w, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	body, _ := json.Marshal(service.GradeSubmissionRequest{Score: 88})
	req, _ := http.NewRequest(http.MethodPost, "/submissions/sub-1/grade", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Grade(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 88, mock.gradeReq.Score)
}

func TestSubmissionHandlerGradeMalformedBody(t *testing.T) {
	handler := NewSubmissionHandler(&submissionServiceMock{}, testFileHandler(t))

	w := httptest.NewRecorder()
	c := submissionTestContext(t, w, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	req, _ := http.NewRequest(http.MethodPost, "/submissions/sub-1/grade", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	handler.Grade(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "error", envelope["status"])
}

func TestSubmissionHandlerMySubmissionNotFound(t *testing.T) {
	mock := &submissionServiceMock{myErr: appErrors.Clone(appErrors.ErrNotFound, "no submission yet")}
	handler := NewSubmissionHandler(mock, testFileHandler(t))

	w := httptest.NewRecorder()
	c := submissionTestContext(t, w, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})
	req, _ := http.NewRequest(http.MethodGet, "/assignments/a1/my-submission", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.MySubmission(c)
	require.Equal(t, http.StatusNotFound, w.Code)

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "error", envelope["status"])
}

func TestSubmissionHandlerExportSetsDisposition(t *testing.T) {
	handler := NewSubmissionHandler(&submissionServiceMock{}, testFileHandler(t))

	w := httptest.NewRecorder()
	c := submissionTestContext(t, w, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	req, _ := http.NewRequest(http.MethodGet, "/assignments/a1/submissions/export?format=csv", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "a1"}}

	handler.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="submissions-a1.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}
