package assistant

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"kakachat/internal/queue"
)

const (
	TaskChat  = "assistant:chat"
	TaskImage = "assistant:image"

	// SystemInstruction is the fixed persona for text replies.
	SystemInstruction = "You are a helpful assistant in a chat responding to questions with short answers."

	// FallbackText is posted when the model returns nothing usable.
	FallbackText = "Sorry, I couldn't generate a response."

	// PlaceholderImage is posted when the image pipeline fails anywhere.
	PlaceholderImage = "/poopenai.png"
)

// JobPayload is the queue payload for both assistant task types. The prompt
// is the triggering message text, command prefix included.
type JobPayload struct {
	ConversationID int64  `json:"conversation_id"`
	Prompt         string `json:"prompt"`
}

// MessagePoster writes assistant replies back into a conversation.
type MessagePoster interface {
	PostAssistantText(conversationID int64, content string) error
	PostAssistantImage(conversationID int64, content string) error
}

// BlobStore persists generated images and resolves their public URLs.
type BlobStore interface {
	Put(contentType string, data []byte) (string, error)
	URL(id string) string
}

// Worker consumes assistant jobs. Every failure path degrades into a
// fallback reply so the triggering conversation is never left hanging; the
// log lines are the only place the failure causes are told apart.
type Worker struct {
	logger   *zap.SugaredLogger
	client   *Client
	messages MessagePoster
	blobs    BlobStore
}

func NewWorker(logger *zap.SugaredLogger, client *Client, messages MessagePoster, blobs BlobStore) *Worker {
	return &Worker{
		logger:   logger,
		client:   client,
		messages: messages,
		blobs:    blobs,
	}
}

func (w *Worker) Register(srv queue.Server) {
	srv.Register(TaskChat, w.handleChat)
	srv.Register(TaskImage, w.handleImage)
}

func (w *Worker) handleChat(ctx context.Context, t queue.Task) error {
	var job JobPayload
	if err := json.Unmarshal(t.Payload, &job); err != nil {
		w.logger.Errorw("chat job: bad payload", "error", err)
		return err
	}

	reply, err := w.client.GenerateText(ctx, SystemInstruction, job.Prompt)
	if err != nil {
		w.logger.Errorw("chat job: api error", "conversation", job.ConversationID, "error", err)
		reply = ""
	}
	if reply == "" {
		reply = FallbackText
	}

	if err := w.messages.PostAssistantText(job.ConversationID, reply); err != nil {
		w.logger.Errorw("chat job: post reply failed", "conversation", job.ConversationID, "error", err)
		return err
	}
	return nil
}

func (w *Worker) handleImage(ctx context.Context, t queue.Task) error {
	var job JobPayload
	if err := json.Unmarshal(t.Payload, &job); err != nil {
		w.logger.Errorw("image job: bad payload", "error", err)
		return err
	}

	content := w.generateImage(ctx, job)
	if err := w.messages.PostAssistantImage(job.ConversationID, content); err != nil {
		w.logger.Errorw("image job: post reply failed", "conversation", job.ConversationID, "error", err)
		return err
	}
	return nil
}

// generateImage runs the multimodal call and blob upload, returning the
// placeholder path on any failure.
func (w *Worker) generateImage(ctx context.Context, job JobPayload) string {
	parts, err := w.client.GenerateMultimodal(ctx, job.Prompt)
	if err != nil {
		w.logger.Errorw("image job: api error", "conversation", job.ConversationID, "error", err)
		return PlaceholderImage
	}

	var inline *Part
	for i := range parts {
		if strings.HasPrefix(parts[i].InlineMIME, "image/") && parts[i].InlineData != "" {
			inline = &parts[i]
			break
		}
	}
	if inline == nil {
		w.logger.Warnw("image job: no image part in response", "conversation", job.ConversationID, "parts", len(parts))
		return PlaceholderImage
	}

	data, err := base64.StdEncoding.DecodeString(inline.InlineData)
	if err != nil {
		w.logger.Errorw("image job: decode failed", "conversation", job.ConversationID, "error", err)
		return PlaceholderImage
	}

	id, err := w.blobs.Put(inline.InlineMIME, data)
	if err != nil {
		w.logger.Errorw("image job: upload failed", "conversation", job.ConversationID, "error", err)
		return PlaceholderImage
	}
	return w.blobs.URL(id)
}
