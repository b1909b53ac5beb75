package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"kakachat/internal/blobstore"
	"kakachat/internal/middleware"
)

func storageRouter(t *testing.T) (*gin.Engine, *blobstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := blobstore.New(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)
	h := NewStorageHandler(store)

	r := gin.New()
	r.POST("/storage/upload-url", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, int64(1))
		h.CreateUploadURL(c)
	})
	r.POST("/storage/upload/:token", h.Upload)
	r.GET("/files/:id", h.ServeFile)
	return r, store
}

func TestUploadAndServe(t *testing.T) {
	t.Parallel()

	router, _ := storageRouter(t)

	// шаг 1: получить upload URL
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/storage/upload-url", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var urlResp struct {
		UploadURL string `json:"upload_url"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &urlResp))
	require.NotEmpty(t, urlResp.UploadURL)

	// шаг 2: выгрузить байты
	req := httptest.NewRequest(http.MethodPost, urlResp.UploadURL, bytes.NewReader([]byte("pretend-png")))
	req.Header.Set("Content-Type", "image/png")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var upResp struct {
		StorageID string `json:"storage_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &upResp))
	require.NotEmpty(t, upResp.StorageID)

	// шаг 3: файл отдаётся публично
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/files/"+upResp.StorageID, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "pretend-png", rr.Body.String())
}

func TestUpload_BadToken(t *testing.T) {
	t.Parallel()

	router, _ := storageRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/storage/upload/never-issued", bytes.NewReader([]byte("x")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestUpload_Empty(t *testing.T) {
	t.Parallel()

	router, store := storageRouter(t)
	token := store.CreateUploadToken()

	req := httptest.NewRequest(http.MethodPost, "/storage/upload/"+token, bytes.NewReader(nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServeFile_Missing(t *testing.T) {
	t.Parallel()

	router, _ := storageRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/files/nope.png", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
