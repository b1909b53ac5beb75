package services

import (
	"errors"
	"fmt"
	"strings"

	"kakachat/internal/models"
	"kakachat/internal/repositories"
)

var (
	ErrNotParticipant = errors.New("user is not part of this conversation")
	ErrNotAdmin       = errors.New("only the group admin can do this")
)

// BlobResolver resolves stored blob ids to public URLs (group images).
type BlobResolver interface {
	URL(id string) string
}

type ConversationService struct {
	repo  repositories.ConversationRepository
	users repositories.UserRepository
	blobs BlobResolver
}

func NewConversationService(repo repositories.ConversationRepository, users repositories.UserRepository, blobs BlobResolver) *ConversationService {
	return &ConversationService{repo: repo, users: users, blobs: blobs}
}

// CreateDirect creates a one-on-one conversation between the creator and one
// other user. Repeated creation between the same pair yields another
// conversation; pairs are deliberately not unique.
func (s *ConversationService) CreateDirect(creatorID, otherID int64) (*models.Conversation, error) {
	if creatorID == otherID {
		return nil, fmt.Errorf("cannot start a conversation with yourself")
	}
	if _, err := s.users.GetByID(otherID); err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		IsGroup:      false,
		Participants: []int64{creatorID, otherID},
	}
	if err := s.repo.Create(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateGroup creates a group of the creator plus at least two others. The
// creator becomes admin and is always a participant. groupImage is an
// optional storage id from a prior upload.
func (s *ConversationService) CreateGroup(creatorID int64, others []int64, groupName, groupImage string) (*models.Conversation, error) {
	if strings.TrimSpace(groupName) == "" {
		return nil, fmt.Errorf("group name is required")
	}

	participants := []int64{creatorID}
	seen := map[int64]bool{creatorID: true}
	for _, id := range others {
		if seen[id] {
			continue
		}
		seen[id] = true
		participants = append(participants, id)
	}
	if len(participants) < 3 {
		return nil, fmt.Errorf("a group needs at least two other participants")
	}

	name := strings.TrimSpace(groupName)
	conv := &models.Conversation{
		IsGroup:      true,
		GroupName:    &name,
		Admin:        &creatorID,
		Participants: participants,
	}
	if groupImage != "" {
		url := s.blobs.URL(groupImage)
		conv.GroupImage = &url
	}
	if err := s.repo.Create(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) GetForParticipant(conversationID, userID int64) (*models.Conversation, error) {
	conv, err := s.repo.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func (s *ConversationService) ListForUser(userID int64) ([]*models.Conversation, error) {
	return s.repo.ListForUser(userID)
}

// Members returns the public profiles of a conversation's participants. The
// caller must be one of them.
func (s *ConversationService) Members(conversationID, callerID int64) ([]*models.User, error) {
	conv, err := s.GetForParticipant(conversationID, callerID)
	if err != nil {
		return nil, err
	}

	members := make([]*models.User, 0, len(conv.Participants))
	for _, id := range conv.Participants {
		u, err := s.users.GetByID(id)
		if err != nil {
			return nil, err
		}
		members = append(members, u)
	}
	return members, nil
}

// AddParticipant adds a user; the caller must already be a participant.
func (s *ConversationService) AddParticipant(conversationID, callerID, userID int64) error {
	if _, err := s.GetForParticipant(conversationID, callerID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(userID); err != nil {
		return err
	}
	return s.repo.AddParticipant(conversationID, userID)
}

// RemoveParticipant removes a member. Anyone may leave; removing someone
// else from a group requires admin. Whether the admin stays a participant
// afterwards is not re-validated.
func (s *ConversationService) RemoveParticipant(conversationID, callerID, userID int64) error {
	conv, err := s.GetForParticipant(conversationID, callerID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	if userID != callerID {
		if conv.Admin == nil || *conv.Admin != callerID {
			return ErrNotAdmin
		}
	}
	return s.repo.RemoveParticipant(conversationID, userID)
}
