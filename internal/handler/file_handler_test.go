package handler

import (
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openclass/classroom-api/pkg/storage"
)

func newFileFixture(t *testing.T, ttl time.Duration) (*FileHandler, *storage.LocalStorage, *storage.SignedURLSigner) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("file-test-secret", ttl)
	return NewFileHandler(store, signer, "/v1/files", zap.NewNop()), store, signer
}

func TestFileHandlerDownload(t *testing.T) {
	handler, store, _ := newFileFixture(t, time.Minute)
	relPath, err := store.SaveStream("assignments/c1/prompt.pdf", strings.NewReader("prompt body"))
	require.NoError(t, err)

	signed := handler.DownloadPath(relPath)
	require.True(t, strings.HasPrefix(signed, "/v1/files/"))
	token := path.Base(signed)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, signed, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: token}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "prompt body", w.Body.String())
	assert.Equal(t, `attachment; filename="prompt.pdf"`, w.Header().Get("Content-Disposition"))
}

func TestFileHandlerDownloadBadToken(t *testing.T) {
	handler, _, _ := newFileFixture(t, time.Minute)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/v1/files/not-a-token", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: "not-a-token"}}

	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileHandlerDownloadExpiredToken(t *testing.T) {
	handler, store, signer := newFileFixture(t, time.Nanosecond)
	relPath, err := store.SaveStream("materials/c1/notes.txt", strings.NewReader("notes"))
	require.NoError(t, err)

	token, expiresAt, err := signer.Generate(relPath)
	require.NoError(t, err)
	time.Sleep(time.Until(expiresAt) + time.Millisecond)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/v1/files/"+token, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: token}}

	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileHandlerDownloadMissingFile(t *testing.T) {
	handler, _, signer := newFileFixture(t, time.Minute)
	token, _, err := signer.Generate("submissions/a1/gone.pdf")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/v1/files/"+token, nil)
	c.Request = req
	c.Params = gin.Params{{Key: "token", Value: token}}

	handler.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFileHandlerDownloadPathEmptyInput(t *testing.T) {
	handler, _, _ := newFileFixture(t, time.Minute)
	assert.Equal(t, "", handler.DownloadPath(""))
}
