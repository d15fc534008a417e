package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
	"github.com/openclass/classroom-api/internal/repository"
	appErrors "github.com/openclass/classroom-api/pkg/errors"
)

type mockAssignmentRepo struct {
	assignments map[string]models.Assignment
	deleted     []string
	lastUpdate  *repository.AssignmentUpdate
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = "a1"
	}
	if m.assignments == nil {
		m.assignments = make(map[string]models.Assignment)
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, id string, update repository.AssignmentUpdate) error {
	m.lastUpdate = &update
	a := m.assignments[id]
	if update.Title != nil {
		a.Title = *update.Title
	}
	if update.Description != nil {
		a.Description = *update.Description
	}
	if update.SetDueDate {
		a.DueDate = update.DueDate
	}
	if update.SetFileURL {
		a.FileURL = update.FileURL
	}
	m.assignments[id] = a
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.assignments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) ListByClass(ctx context.Context, classID string) ([]models.Assignment, error) {
	var list []models.Assignment
	for _, a := range m.assignments {
		if a.ClassID == classID {
			list = append(list, a)
		}
	}
	return list, nil
}

type mockAssignmentCounter struct {
	byAssignment map[string]int
}

func (m *mockAssignmentCounter) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	return m.byAssignment[assignmentID], nil
}

type assignmentFixture struct {
	repo   *mockAssignmentRepo
	store  *mockUploadStore
	counts *mockAssignmentCounter
	svc    *AssignmentService
}

func newAssignmentFixture() *assignmentFixture {
	repo := &mockAssignmentRepo{}
	store := &mockUploadStore{}
	counts := &mockAssignmentCounter{}
	classes := &mockClassReaderByID{classes: map[string]models.Class{"c1": {ID: "c1", OwnerID: "t1"}}}
	enrollments := &mockEnrollmentChecker{joined: map[string]bool{"c1:s1": true}}
	svc := NewAssignmentService(repo, classes, enrollments, counts, store, 1<<20, validator.New(), zap.NewNop())
	return &assignmentFixture{repo: repo, store: store, counts: counts, svc: svc}
}

func TestAssignmentServiceCreateWithFile(t *testing.T) {
	f := newAssignmentFixture()
	due := time.Now().Add(48 * time.Hour)

	assignment, err := f.svc.Create(context.Background(), teacher, "c1",
		CreateAssignmentRequest{Title: "Essay", DueDate: &due}, testUpload("brief.pdf", "doc"))
	require.NoError(t, err)
	require.NotNil(t, assignment.FileURL)
	assert.Contains(t, *assignment.FileURL, "assignments/c1/")
	assert.Len(t, f.store.saved, 1)
}

func TestAssignmentServiceCreateNotOwner(t *testing.T) {
	f := newAssignmentFixture()
	other := teacher
	other.ID = "t2"

	_, err := f.svc.Create(context.Background(), other, "c1", CreateAssignmentRequest{Title: "Essay"}, nil)
	assert.Equal(t, http.StatusForbidden, errStatus(t, err))
}

func TestAssignmentServiceCreateUploadTooLarge(t *testing.T) {
	f := newAssignmentFixture()
	upload := testUpload("huge.bin", "x")
	upload.Size = 2 << 20

	_, err := f.svc.Create(context.Background(), teacher, "c1", CreateAssignmentRequest{Title: "Essay"}, upload)
	assert.Equal(t, http.StatusUnprocessableEntity, errStatus(t, err))
	assert.Empty(t, f.store.saved)
}

func TestAssignmentServiceUpdateReplacesFile(t *testing.T) {
	f := newAssignmentFixture()
	created, err := f.svc.Create(context.Background(), teacher, "c1",
		CreateAssignmentRequest{Title: "Essay"}, testUpload("v1.pdf", "one"))
	require.NoError(t, err)
	oldFile := *created.FileURL

	updated, err := f.svc.Update(context.Background(), teacher, created.ID,
		UpdateAssignmentRequest{}, testUpload("v2.pdf", "two"))
	require.NoError(t, err)
	require.NotNil(t, updated.FileURL)
	assert.NotEqual(t, oldFile, *updated.FileURL)
	assert.Contains(t, f.store.deleted, oldFile)
}

func TestAssignmentServiceUpdateClearDueDate(t *testing.T) {
	f := newAssignmentFixture()
	due := time.Now().Add(time.Hour)
	created, err := f.svc.Create(context.Background(), teacher, "c1",
		CreateAssignmentRequest{Title: "Essay", DueDate: &due}, nil)
	require.NoError(t, err)

	updated, err := f.svc.Update(context.Background(), teacher, created.ID,
		UpdateAssignmentRequest{ClearDueDate: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)
	require.NotNil(t, f.repo.lastUpdate)
	assert.True(t, f.repo.lastUpdate.SetDueDate)
	assert.Nil(t, f.repo.lastUpdate.DueDate)
}

func TestAssignmentServiceDeleteBlockedBySubmissions(t *testing.T) {
	f := newAssignmentFixture()
	created, err := f.svc.Create(context.Background(), teacher, "c1", CreateAssignmentRequest{Title: "Essay"}, nil)
	require.NoError(t, err)
	f.counts.byAssignment = map[string]int{created.ID: 1}

	err = f.svc.Delete(context.Background(), teacher, created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrHasSubmissions.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.deleted)
}

func TestAssignmentServiceDeleteRemovesFile(t *testing.T) {
	f := newAssignmentFixture()
	created, err := f.svc.Create(context.Background(), teacher, "c1",
		CreateAssignmentRequest{Title: "Essay"}, testUpload("brief.pdf", "doc"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), teacher, created.ID))
	assert.Contains(t, f.repo.deleted, created.ID)
	assert.Contains(t, f.store.deleted, *created.FileURL)
}

func TestAssignmentServiceGetStudentGated(t *testing.T) {
	f := newAssignmentFixture()
	created, err := f.svc.Create(context.Background(), teacher, "c1", CreateAssignmentRequest{Title: "Essay"}, nil)
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), student, created.ID)
	require.NoError(t, err)

	outsider := student
	outsider.ID = "s2"
	_, err = f.svc.Get(context.Background(), outsider, created.ID)
	assert.Equal(t, http.StatusForbidden, errStatus(t, err))
}
