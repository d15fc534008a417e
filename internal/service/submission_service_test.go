package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
	"github.com/openclass/classroom-api/pkg/export"
)

type mockSubmissionRepo struct {
	byID      map[string]models.Submission
	byPair    map[string]models.Submission
	upserted  *models.Submission
	graded    map[string]int
	details   []models.SubmissionDetail
	upsertErr error
}

func pairKey(assignmentID, studentID string) string {
	return assignmentID + ":" + studentID
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if s, ok := m.byID[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FindByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	if s, ok := m.byPair[pairKey(assignmentID, studentID)]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) Upsert(ctx context.Context, submission *models.Submission) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	key := pairKey(submission.AssignmentID, submission.StudentID)
	if prior, ok := m.byPair[key]; ok {
		submission.ID = prior.ID
	} else if submission.ID == "" {
		submission.ID = "sub-1"
	}
	if m.byPair == nil {
		m.byPair = make(map[string]models.Submission)
	}
	if m.byID == nil {
		m.byID = make(map[string]models.Submission)
	}
	m.byPair[key] = *submission
	m.byID[submission.ID] = *submission
	m.upserted = submission
	return nil
}

func (m *mockSubmissionRepo) Grade(ctx context.Context, id string, score int, feedback *string, gradedAt time.Time) error {
	if m.graded == nil {
		m.graded = make(map[string]int)
	}
	m.graded[id] = score
	if s, ok := m.byID[id]; ok {
		s.Score = &score
		s.Feedback = feedback
		s.Status = models.SubmissionStatusGraded
		s.GradedAt = &gradedAt
		m.byID[id] = s
	}
	return nil
}

func (m *mockSubmissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	return m.details, nil
}

type mockAssignmentReader struct {
	assignments map[string]models.Assignment
	lookups     int
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	m.lookups++
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassReaderByID struct {
	classes map[string]models.Class
}

func (m *mockClassReaderByID) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockUploadStore struct {
	saved   []string
	deleted []string
	saveErr error
}

func (m *mockUploadStore) SaveStream(filename string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	_, _ = io.Copy(io.Discard, r)
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *mockUploadStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

type stubCSV struct{ rendered *export.Dataset }

func (s *stubCSV) Render(data export.Dataset) ([]byte, error) {
	s.rendered = &data
	return []byte("csv"), nil
}

type stubPDF struct{ title string }

func (s *stubPDF) Render(data export.Dataset, title string) ([]byte, error) {
	s.title = title
	return []byte("%PDF"), nil
}

type submissionFixture struct {
	repo        *mockSubmissionRepo
	assignments *mockAssignmentReader
	store       *mockUploadStore
	csv         *stubCSV
	pdf         *stubPDF
	svc         *SubmissionService
}

func newSubmissionFixture(due *time.Time) *submissionFixture {
	repo := &mockSubmissionRepo{}
	store := &mockUploadStore{}
	csv := &stubCSV{}
	pdf := &stubPDF{}
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"a1": {ID: "a1", ClassID: "c1", Title: "Essay", DueDate: due},
	}}
	classes := &mockClassReaderByID{classes: map[string]models.Class{
		"c1": {ID: "c1", OwnerID: "t1"},
	}}
	enrollments := &mockEnrollmentChecker{joined: map[string]bool{"c1:s1": true}}
	svc := NewSubmissionService(repo, assignments, classes, enrollments, store, 1<<20, csv, pdf, validator.New(), zap.NewNop())
	return &submissionFixture{repo: repo, assignments: assignments, store: store, csv: csv, pdf: pdf, svc: svc}
}

func testUpload(name, content string) *Upload {
	return &Upload{Filename: name, Size: int64(len(content)), Reader: strings.NewReader(content)}
}

func TestSubmissionServiceSubmitFirstTime(t *testing.T) {
	f := newSubmissionFixture(nil)

	result, err := f.svc.Submit(context.Background(), student, "a1", testUpload("work.pdf", "content"))
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, models.SubmissionStatusPending, result.Submission.Status)
	assert.Len(t, f.store.saved, 1)
}

func TestSubmissionServiceResubmitOverwrites(t *testing.T) {
	f := newSubmissionFixture(nil)

	first, err := f.svc.Submit(context.Background(), student, "a1", testUpload("v1.pdf", "one"))
	require.NoError(t, err)

	// Grade it, then resubmit: the row is overwritten and status resets.
	_, err = f.svc.Grade(context.Background(), teacher, first.Submission.ID, GradeSubmissionRequest{Score: 90})
	require.NoError(t, err)

	second, err := f.svc.Submit(context.Background(), student, "a1", testUpload("v2.pdf", "two"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Submission.ID, second.Submission.ID)
	assert.Equal(t, models.SubmissionStatusPending, second.Submission.Status)
	// The replaced file is cleaned up.
	assert.Contains(t, f.store.deleted, first.Submission.FileURL)
}

func TestSubmissionServiceSubmitPastDue(t *testing.T) {
	due := time.Now().Add(-time.Hour)
	f := newSubmissionFixture(&due)

	_, err := f.svc.Submit(context.Background(), student, "a1", testUpload("late.pdf", "x"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPastDue.Code, appErrors.FromError(err).Code)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
	assert.Empty(t, f.store.saved)
}

func TestSubmissionServiceSubmitNotEnrolled(t *testing.T) {
	f := newSubmissionFixture(nil)
	outsider := student
	outsider.ID = "s2"

	_, err := f.svc.Submit(context.Background(), outsider, "a1", testUpload("work.pdf", "x"))
	assert.Equal(t, http.StatusForbidden, errStatus(t, err))
}

func TestSubmissionServiceSubmitTeacherForbidden(t *testing.T) {
	f := newSubmissionFixture(nil)

	_, err := f.svc.Submit(context.Background(), teacher, "a1", testUpload("work.pdf", "x"))
	assert.Equal(t, http.StatusForbidden, errStatus(t, err))
}

func TestSubmissionServiceSubmitCleansUpOnStoreFailure(t *testing.T) {
	f := newSubmissionFixture(nil)
	f.repo.upsertErr = sql.ErrConnDone

	_, err := f.svc.Submit(context.Background(), student, "a1", testUpload("work.pdf", "x"))
	require.Error(t, err)
	require.Len(t, f.store.saved, 1)
	assert.Equal(t, f.store.saved, f.store.deleted)
}

func TestSubmissionServiceGrade(t *testing.T) {
	f := newSubmissionFixture(nil)
	result, err := f.svc.Submit(context.Background(), student, "a1", testUpload("work.pdf", "x"))
	require.NoError(t, err)

	feedback := "solid work"
	graded, err := f.svc.Grade(context.Background(), teacher, result.Submission.ID, GradeSubmissionRequest{Score: 85, Feedback: &feedback})
	require.NoError(t, err)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 85, *graded.Score)
	assert.Equal(t, models.SubmissionStatusGraded, graded.Status)
	assert.NotNil(t, graded.GradedAt)
}

func TestSubmissionServiceGradeScoreOutOfRange(t *testing.T) {
	f := newSubmissionFixture(nil)
	result, err := f.svc.Submit(context.Background(), student, "a1", testUpload("work.pdf", "x"))
	require.NoError(t, err)

	_, err = f.svc.Grade(context.Background(), teacher, result.Submission.ID, GradeSubmissionRequest{Score: 101})
	assert.Equal(t, http.StatusUnprocessableEntity, errStatus(t, err))

	_, err = f.svc.Grade(context.Background(), teacher, result.Submission.ID, GradeSubmissionRequest{Score: -1})
	assert.Equal(t, http.StatusUnprocessableEntity, errStatus(t, err))
}

func TestSubmissionServiceGradeNotOwner(t *testing.T) {
	f := newSubmissionFixture(nil)
	result, err := f.svc.Submit(context.Background(), student, "a1", testUpload("work.pdf", "x"))
	require.NoError(t, err)

	other := teacher
	other.ID = "t2"
	_, err = f.svc.Grade(context.Background(), other, result.Submission.ID, GradeSubmissionRequest{Score: 50})
	assert.Equal(t, http.StatusForbidden, errStatus(t, err))
}

func TestSubmissionServiceMySubmissionNone(t *testing.T) {
	f := newSubmissionFixture(nil)

	_, err := f.svc.MySubmission(context.Background(), student, "a1")
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))
}

func TestSubmissionServiceExportCSV(t *testing.T) {
	f := newSubmissionFixture(nil)
	score := 70
	f.repo.details = []models.SubmissionDetail{{
		Submission:  models.Submission{SubmittedAt: time.Now(), Status: models.SubmissionStatusGraded, Score: &score},
		StudentName: "Student One",
	}}

	content, contentType, filename, err := f.svc.ExportReport(context.Background(), teacher, "a1", "csv")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, []byte("csv")))
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, filename, ".csv")
	require.NotNil(t, f.csv.rendered)
	assert.Equal(t, "70", f.csv.rendered.Rows[0]["Score"])
	assert.Equal(t, 1, f.assignments.lookups)
}

func TestSubmissionServiceExportPDF(t *testing.T) {
	f := newSubmissionFixture(nil)

	_, contentType, filename, err := f.svc.ExportReport(context.Background(), teacher, "a1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.Contains(t, filename, ".pdf")
	assert.Contains(t, f.pdf.title, "Essay")
}

func TestSubmissionServiceExportUnknownFormat(t *testing.T) {
	f := newSubmissionFixture(nil)

	_, _, _, err := f.svc.ExportReport(context.Background(), teacher, "a1", "xlsx")
	assert.Equal(t, http.StatusUnprocessableEntity, errStatus(t, err))
}
