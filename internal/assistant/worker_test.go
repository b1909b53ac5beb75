package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kakachat/internal/queue"
)

type fakePoster struct {
	texts  map[int64]string
	images map[int64]string
}

func newFakePoster() *fakePoster {
	return &fakePoster{texts: make(map[int64]string), images: make(map[int64]string)}
}

func (p *fakePoster) PostAssistantText(conversationID int64, content string) error {
	p.texts[conversationID] = content
	return nil
}

func (p *fakePoster) PostAssistantImage(conversationID int64, content string) error {
	p.images[conversationID] = content
	return nil
}

type fakeBlobStore struct {
	data map[string][]byte
}

func (b *fakeBlobStore) Put(_ string, data []byte) (string, error) {
	if b.data == nil {
		b.data = make(map[string][]byte)
	}
	b.data["blob-1"] = data
	return "blob-1", nil
}

func (b *fakeBlobStore) URL(id string) string { return "http://localhost:8080/files/" + id }

func chatTask(t *testing.T, conversationID int64, prompt string) queue.Task {
	t.Helper()
	payload, err := json.Marshal(JobPayload{ConversationID: conversationID, Prompt: prompt})
	require.NoError(t, err)
	return queue.Task{Type: TaskChat, Payload: payload}
}

func imageTask(t *testing.T, conversationID int64, prompt string) queue.Task {
	t.Helper()
	payload, err := json.Marshal(JobPayload{ConversationID: conversationID, Prompt: prompt})
	require.NoError(t, err)
	return queue.Task{Type: TaskImage, Payload: payload}
}

func TestHandleChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Go is a language."}]}}]}`))
	}))
	defer srv.Close()

	poster := newFakePoster()
	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", srv.URL, "chat", "img", false), poster, &fakeBlobStore{})

	require.NoError(t, w.handleChat(context.Background(), chatTask(t, 10, "@kaka what is Go?")))
	require.Equal(t, "Go is a language.", poster.texts[10])
}

func TestHandleChat_APIErrorFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	poster := newFakePoster()
	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", srv.URL, "chat", "img", false), poster, &fakeBlobStore{})

	require.NoError(t, w.handleChat(context.Background(), chatTask(t, 10, "@kaka hi")))
	require.Equal(t, FallbackText, poster.texts[10])
}

func TestHandleChat_EmptyReplyFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	poster := newFakePoster()
	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", srv.URL, "chat", "img", false), poster, &fakeBlobStore{})

	require.NoError(t, w.handleChat(context.Background(), chatTask(t, 10, "@kaka hi")))
	require.Equal(t, FallbackText, poster.texts[10])
}

func TestHandleImage(t *testing.T) {
	t.Parallel()

	png := base64.StdEncoding.EncodeToString([]byte("pretend-png-bytes"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[
			{"text":"sure"},
			{"inlineData":{"mimeType":"image/png","data":"` + png + `"}}
		]}}]}`))
	}))
	defer srv.Close()

	poster := newFakePoster()
	blobs := &fakeBlobStore{}
	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", srv.URL, "chat", "img", false), poster, blobs)

	require.NoError(t, w.handleImage(context.Background(), imageTask(t, 10, "@kaka-img a red cat")))
	require.Equal(t, "http://localhost:8080/files/blob-1", poster.images[10])
	require.Equal(t, []byte("pretend-png-bytes"), blobs.data["blob-1"])
}

func TestHandleImage_NoImagePart(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"cannot draw that"}]}}]}`))
	}))
	defer srv.Close()

	poster := newFakePoster()
	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", srv.URL, "chat", "img", false), poster, &fakeBlobStore{})

	require.NoError(t, w.handleImage(context.Background(), imageTask(t, 10, "@kaka-img a red cat")))
	require.Equal(t, PlaceholderImage, poster.images[10])
}

func TestHandleImage_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	poster := newFakePoster()
	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", srv.URL, "chat", "img", false), poster, &fakeBlobStore{})

	require.NoError(t, w.handleImage(context.Background(), imageTask(t, 10, "@kaka-img a red cat")))
	require.Equal(t, PlaceholderImage, poster.images[10])
}

func TestHandleImage_BadBase64(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"%%%"}}]}}]}`))
	}))
	defer srv.Close()

	poster := newFakePoster()
	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", srv.URL, "chat", "img", false), poster, &fakeBlobStore{})

	require.NoError(t, w.handleImage(context.Background(), imageTask(t, 10, "@kaka-img cat")))
	require.Equal(t, PlaceholderImage, poster.images[10])
}

func TestHandleChat_BadPayload(t *testing.T) {
	t.Parallel()

	w := NewWorker(zap.NewNop().Sugar(), NewClient("k", "http://unreachable.invalid", "chat", "img", true), newFakePoster(), &fakeBlobStore{})

	err := w.handleChat(context.Background(), queue.Task{Type: TaskChat, Payload: []byte("{")})
	require.Error(t, err)
}
