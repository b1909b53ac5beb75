package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"kakachat/internal/blobstore"
)

// maxUploadBytes caps a single media upload.
const maxUploadBytes = 25 << 20 // 25 MiB

type StorageHandler struct {
	store *blobstore.Store
}

func NewStorageHandler(store *blobstore.Store) *StorageHandler {
	return &StorageHandler{store: store}
}

// CreateUploadURL issues a short-lived upload credential. The client POSTs
// the raw bytes to the returned URL, then references the storage id in a
// message or group image.
func (h *StorageHandler) CreateUploadURL(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	token := h.store.CreateUploadToken()
	c.JSON(http.StatusOK, gin.H{
		"upload_url": "/storage/upload/" + token,
	})
}

// Upload receives the bytes against a one-time token. Auth is the token
// itself, matching the short-lived upload endpoint the flow is modeled on.
func (h *StorageHandler) Upload(c *gin.Context) {
	token := c.Param("token")

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload body"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty upload"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}

	storageID, err := h.store.Save(token, c.ContentType(), data)
	if err != nil {
		if errors.Is(err, blobstore.ErrTokenInvalid) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"storage_id": storageID})
}

// ServeFile returns blob bytes by storage id. Public: message content URLs
// must be fetchable without auth.
func (h *StorageHandler) ServeFile(c *gin.Context) {
	path, err := h.store.Path(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	c.File(path)
}
