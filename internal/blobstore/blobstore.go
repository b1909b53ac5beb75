// Package blobstore keeps message media on local disk. Uploads are a
// two-step flow: the client asks for a short-lived upload token, then POSTs
// the bytes against it; the resulting storage id is referenced from a
// message. A crash between the steps leaves an orphaned blob behind, which
// is accepted.
package blobstore

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("upload token is invalid or expired")
	ErrBlobNotFound = errors.New("blob not found")
)

const tokenTTL = 15 * time.Minute

type Store struct {
	rootDir   string
	publicURL string

	mu     sync.Mutex
	tokens map[string]time.Time // token -> expiry
	now    func() time.Time
}

func New(rootDir, publicURL string) (*Store, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create root dir: %w", err)
	}
	return &Store{
		rootDir:   rootDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		tokens:    make(map[string]time.Time),
		now:       time.Now,
	}, nil
}

// CreateUploadToken issues a one-time token the client uploads against.
// Tokens that expired without being consumed are dropped here so the map
// does not grow for the lifetime of the process.
func (s *Store) CreateUploadToken() string {
	token := uuid.NewString()
	s.mu.Lock()
	now := s.now()
	for t, expiry := range s.tokens {
		if now.After(expiry) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(tokenTTL)
	s.mu.Unlock()
	return token
}

// Save consumes the token and writes the blob, returning its storage id.
func (s *Store) Save(token, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	expiry, ok := s.tokens[token]
	if ok {
		delete(s.tokens, token)
	}
	s.mu.Unlock()

	if !ok || s.now().After(expiry) {
		return "", ErrTokenInvalid
	}
	return s.Put(contentType, data)
}

// Put writes a blob directly, bypassing the token flow. The assistant image
// job uses it for generated images.
func (s *Store) Put(contentType string, data []byte) (string, error) {
	id := uuid.NewString() + extensionFor(contentType)
	if err := os.WriteFile(filepath.Join(s.rootDir, id), data, 0o644); err != nil {
		return "", fmt.Errorf("blobstore: write blob: %w", err)
	}
	return id, nil
}

// URL resolves a storage id to the public fetchable URL used as message
// content.
func (s *Store) URL(id string) string {
	return s.publicURL + "/files/" + id
}

// Path returns the on-disk location of a blob, or ErrBlobNotFound. The id is
// cleaned to keep lookups inside the root dir.
func (s *Store) Path(id string) (string, error) {
	clean := filepath.Base(id)
	p := filepath.Join(s.rootDir, clean)
	if _, err := os.Stat(p); err != nil {
		return "", ErrBlobNotFound
	}
	return p, nil
}

func extensionFor(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mt {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	}
	if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
