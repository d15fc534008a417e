package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"

	appErrors "github.com/openclass/classroom-api/pkg/errors"
)

// Upload is an incoming file stream, already size-capped by the transport.
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

type uploadStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// saveUpload validates the size bound and writes the stream under a
// collision-free name scoped to the owning entity.
func saveUpload(_ context.Context, store uploadStorage, maxBytes int64, scope, entityID string, upload *Upload) (string, error) {
	if upload.Size > maxBytes {
		return "", appErrors.WithFields(
			appErrors.Clone(appErrors.ErrValidation, "uploaded file is too large"),
			map[string]string{"file": fmt.Sprintf("must be at most %d bytes", maxBytes)},
		)
	}
	ext := filepath.Ext(upload.Filename)
	relPath := filepath.Join(scope, entityID, uuid.NewString()+ext)
	if _, err := store.SaveStream(relPath, upload.Reader); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}
	return relPath, nil
}
