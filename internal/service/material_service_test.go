package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/internal/models"
)

type mockMaterialRepo struct {
	materials map[string]models.Material
	deleted   []string
}

func (m *mockMaterialRepo) Create(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = "m1"
	}
	if m.materials == nil {
		m.materials = make(map[string]models.Material)
	}
	m.materials[material.ID] = *material
	return nil
}

func (m *mockMaterialRepo) Update(ctx context.Context, id string, title, description, content *string) error {
	material := m.materials[id]
	if title != nil {
		material.Title = *title
	}
	if description != nil {
		material.Description = *description
	}
	if content != nil {
		material.Content = *content
	}
	m.materials[id] = material
	return nil
}

func (m *mockMaterialRepo) Delete(ctx context.Context, id string) error {
	delete(m.materials, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockMaterialRepo) FindByID(ctx context.Context, id string) (*models.Material, error) {
	if material, ok := m.materials[id]; ok {
		return &material, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMaterialRepo) ListByClass(ctx context.Context, classID string) ([]models.Material, error) {
	var list []models.Material
	for _, material := range m.materials {
		if material.ClassID == classID {
			list = append(list, material)
		}
	}
	return list, nil
}

func newMaterialService(repo *mockMaterialRepo) *MaterialService {
	classes := &mockClassReaderByID{classes: map[string]models.Class{"c1": {ID: "c1", OwnerID: "t1"}}}
	enrollments := &mockEnrollmentChecker{joined: map[string]bool{"c1:s1": true}}
	return NewMaterialService(repo, classes, enrollments, validator.New(), zap.NewNop())
}

func TestMaterialServiceCreate(t *testing.T) {
	repo := &mockMaterialRepo{}
	svc := newMaterialService(repo)

	material, err := svc.Create(context.Background(), teacher, "c1", CreateMaterialRequest{Title: "Intro", Content: "Welcome"})
	require.NoError(t, err)
	assert.Equal(t, "c1", material.ClassID)
}

func TestMaterialServiceCreateNotOwner(t *testing.T) {
	svc := newMaterialService(&mockMaterialRepo{})
	other := teacher
	other.ID = "t2"

	_, err := svc.Create(context.Background(), other, "c1", CreateMaterialRequest{Title: "Intro", Content: "Welcome"})
	assert.Equal(t, http.StatusForbidden, errStatus(t, err))
}

func TestMaterialServiceCreateMissingContent(t *testing.T) {
	svc := newMaterialService(&mockMaterialRepo{})

	_, err := svc.Create(context.Background(), teacher, "c1", CreateMaterialRequest{Title: "Intro"})
	assert.Equal(t, http.StatusUnprocessableEntity, errStatus(t, err))
}

func TestMaterialServiceUpdatePartial(t *testing.T) {
	repo := &mockMaterialRepo{}
	svc := newMaterialService(repo)
	created, err := svc.Create(context.Background(), teacher, "c1", CreateMaterialRequest{Title: "Intro", Content: "Welcome"})
	require.NoError(t, err)

	newTitle := "Week 1"
	updated, err := svc.Update(context.Background(), teacher, created.ID, UpdateMaterialRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "Week 1", updated.Title)
	assert.Equal(t, "Welcome", updated.Content)
}

func TestMaterialServiceGetEnrollmentGated(t *testing.T) {
	repo := &mockMaterialRepo{}
	svc := newMaterialService(repo)
	created, err := svc.Create(context.Background(), teacher, "c1", CreateMaterialRequest{Title: "Intro", Content: "Welcome"})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), student, created.ID)
	require.NoError(t, err)

	outsider := student
	outsider.ID = "s2"
	_, err = svc.Get(context.Background(), outsider, created.ID)
	assert.Equal(t, http.StatusForbidden, errStatus(t, err))
}

func TestMaterialServiceDeleteUnknown(t *testing.T) {
	svc := newMaterialService(&mockMaterialRepo{})

	err := svc.Delete(context.Background(), teacher, "missing")
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))
}
