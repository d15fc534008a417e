package handler

import (
	"net/http"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/openclass/classroom-api/pkg/errors"
	"github.com/openclass/classroom-api/pkg/response"
	"github.com/openclass/classroom-api/pkg/storage"
)

// FileHandler serves stored uploads through signed download tokens.
type FileHandler struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
	prefix  string
	logger  *zap.Logger
}

// NewFileHandler creates a new handler. prefix is the public route prefix the
// download endpoint is mounted under, e.g. "/v1/files".
func NewFileHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner, prefix string, logger *zap.Logger) *FileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileHandler{storage: store, signer: signer, prefix: prefix, logger: logger}
}

// DownloadPath returns the public signed path for a stored file, or the empty
// string when relPath is empty or signing fails.
func (h *FileHandler) DownloadPath(relPath string) string {
	if relPath == "" {
		return ""
	}
	token, _, err := h.signer.Generate(relPath)
	if err != nil {
		h.logger.Warn("failed to sign download path", zap.String("path", relPath), zap.Error(err))
		return ""
	}
	return path.Join(h.prefix, token)
}

// Download godoc
// @Summary Download stored file
// @Description Serve an uploaded file referenced by a signed token
// @Tags Files
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	relPath, _, err := h.signer.Parse(c.Param("token"))
	if err != nil {
		// Invalid and expired tokens are indistinguishable from missing
		// files to avoid probing.
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}

	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to read file"))
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+filepath.Base(relPath)+"\"")
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
