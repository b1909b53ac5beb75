package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"kakachat/internal/assistant"
	"kakachat/internal/models"
	"kakachat/internal/queue"
	"kakachat/internal/repositories"
)

// Command prefixes that hand a message off to the assistant. The image
// prefix must be checked first: "@kaka-img" also matches "@kaka".
const (
	CommandImagePrefix = "@kaka-img"
	CommandChatPrefix  = "@kaka"
)

var (
	ErrEmptyMessage  = errors.New("message content is required")
	ErrUnknownSender = errors.New("message has no resolvable sender")
)

// Synthetic sender display profiles, resolved at read time instead of a
// user lookup.
var (
	assistantTextProfile  = models.SenderProfile{Name: "KAKA", Image: "/gpt.png"}
	assistantImageProfile = models.SenderProfile{Name: "KAKA_I", Image: "/dall-e.png"}
)

// Broadcaster pushes a freshly stored message to subscribed clients.
type Broadcaster interface {
	Broadcast(conversationID int64, msg *models.EnrichedMessage)
}

type MessageService struct {
	logger        *zap.SugaredLogger
	messages      repositories.MessageRepository
	conversations repositories.ConversationRepository
	users         repositories.UserRepository
	blobs         BlobResolver
	jobs          queue.Client
	jobDelay      time.Duration
	hub           Broadcaster // может быть nil в фоновых задачах и тестах
}

func NewMessageService(
	logger *zap.SugaredLogger,
	messages repositories.MessageRepository,
	conversations repositories.ConversationRepository,
	users repositories.UserRepository,
	blobs BlobResolver,
	jobs queue.Client,
	jobDelay time.Duration,
	hub Broadcaster,
) *MessageService {
	return &MessageService{
		logger:        logger,
		messages:      messages,
		conversations: conversations,
		users:         users,
		blobs:         blobs,
		jobs:          jobs,
		jobDelay:      jobDelay,
		hub:           hub,
	}
}

// SendText stores a text message from a user and, when the text carries a
// command prefix, schedules the matching assistant job. A failed enqueue is
// logged and swallowed; the stored message stands either way.
func (s *MessageService) SendText(ctx context.Context, senderID, conversationID int64, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.ensureParticipant(conversationID, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderKind:     models.SenderUser,
		SenderID:       &senderID,
		MessageType:    models.MessageText,
		Content:        content,
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, err
	}
	s.broadcast(msg)

	// порядок проверки важен: "@kaka-img" начинается с "@kaka"
	switch {
	case strings.HasPrefix(content, CommandImagePrefix):
		s.enqueueAssistant(ctx, assistant.TaskImage, conversationID, content)
	case strings.HasPrefix(content, CommandChatPrefix):
		s.enqueueAssistant(ctx, assistant.TaskChat, conversationID, content)
	}

	return msg, nil
}

// SendImage stores an image message whose content is the public URL of a
// previously uploaded blob.
func (s *MessageService) SendImage(senderID, conversationID int64, storageID string) (*models.Message, error) {
	return s.sendMedia(senderID, conversationID, storageID, models.MessageImage)
}

// SendVideo is SendImage for video blobs.
func (s *MessageService) SendVideo(senderID, conversationID int64, storageID string) (*models.Message, error) {
	return s.sendMedia(senderID, conversationID, storageID, models.MessageVideo)
}

func (s *MessageService) sendMedia(senderID, conversationID int64, storageID string, mt models.MessageType) (*models.Message, error) {
	if storageID == "" {
		return nil, ErrEmptyMessage
	}
	if err := s.ensureParticipant(conversationID, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderKind:     models.SenderUser,
		SenderID:       &senderID,
		MessageType:    mt,
		Content:        s.blobs.URL(storageID),
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, err
	}
	s.broadcast(msg)
	return msg, nil
}

// PostAssistantText writes a text reply under the synthetic text sender.
// Used by the assistant worker.
func (s *MessageService) PostAssistantText(conversationID int64, content string) error {
	return s.postAssistant(conversationID, content, models.SenderAssistantText, models.MessageText)
}

// PostAssistantImage writes an image reply under the synthetic image sender.
func (s *MessageService) PostAssistantImage(conversationID int64, content string) error {
	return s.postAssistant(conversationID, content, models.SenderAssistantImage, models.MessageImage)
}

func (s *MessageService) postAssistant(conversationID int64, content string, kind models.SenderKind, mt models.MessageType) error {
	msg := &models.Message{
		ConversationID: conversationID,
		SenderKind:     kind,
		MessageType:    mt,
		Content:        content,
	}
	if err := s.messages.Create(msg); err != nil {
		return err
	}
	s.broadcast(msg)
	return nil
}

// ListMessages returns the conversation's messages in creation order, each
// with its sender profile resolved. Human profiles are cached per call so a
// chatty sender costs one lookup.
func (s *MessageService) ListMessages(conversationID, callerID int64) ([]*models.EnrichedMessage, error) {
	if err := s.ensureParticipant(conversationID, callerID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByConversation(conversationID)
	if err != nil {
		return nil, err
	}

	cache := make(map[int64]models.SenderProfile)
	enriched := make([]*models.EnrichedMessage, 0, len(messages))
	for _, m := range messages {
		profile, err := s.senderProfile(m, cache)
		if err != nil {
			return nil, err
		}
		enriched = append(enriched, &models.EnrichedMessage{Message: *m, Sender: profile})
	}
	return enriched, nil
}

func (s *MessageService) senderProfile(m *models.Message, cache map[int64]models.SenderProfile) (models.SenderProfile, error) {
	switch m.SenderKind {
	case models.SenderAssistantText:
		return assistantTextProfile, nil
	case models.SenderAssistantImage:
		return assistantImageProfile, nil
	}

	if m.SenderID == nil {
		return models.SenderProfile{}, ErrUnknownSender
	}
	if p, ok := cache[*m.SenderID]; ok {
		return p, nil
	}

	u, err := s.users.GetByID(*m.SenderID)
	if err != nil {
		return models.SenderProfile{}, err
	}
	p := models.SenderProfile{ID: &u.ID, Name: u.Name, Image: u.Image, IsOnline: u.IsOnline}
	cache[*m.SenderID] = p
	return p, nil
}

func (s *MessageService) ensureParticipant(conversationID, userID int64) error {
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return nil
}

func (s *MessageService) enqueueAssistant(ctx context.Context, taskType string, conversationID int64, prompt string) {
	payload, err := json.Marshal(assistant.JobPayload{ConversationID: conversationID, Prompt: prompt})
	if err != nil {
		s.logger.Errorw("marshal assistant job", "type", taskType, "error", err)
		return
	}
	err = s.jobs.Enqueue(ctx, queue.Task{Type: taskType, Payload: payload}, s.jobDelay)
	if err != nil {
		// сообщение уже сохранено, планирование не откатывает вставку
		s.logger.Errorw("enqueue assistant job", "type", taskType, "conversation", conversationID, "error", err)
	}
}

func (s *MessageService) broadcast(msg *models.Message) {
	if s.hub == nil {
		return
	}
	profile, err := s.senderProfile(msg, map[int64]models.SenderProfile{})
	if err != nil {
		s.logger.Warnw("broadcast: resolve sender failed", "message", msg.ID, "error", err)
		return
	}
	s.hub.Broadcast(msg.ConversationID, &models.EnrichedMessage{Message: *msg, Sender: profile})
}
