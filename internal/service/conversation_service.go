package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"courier/internal/events"
	"courier/internal/models"
	"courier/internal/storage"
)

// ConversationService manages multi-user conversations and their messages.
type ConversationService struct {
	conversations *storage.ConversationRepository
	messages      *storage.MessageRepository
	users         *storage.UserRepository
	bus           *events.Bus
}

func NewConversationService(conversations *storage.ConversationRepository, messages *storage.MessageRepository, users *storage.UserRepository, bus *events.Bus) *ConversationService {
	return &ConversationService{conversations: conversations, messages: messages, users: users, bus: bus}
}

// Create starts a conversation. The creator is always a participant even
// when absent from participantIDs; every referenced user must exist.
func (s *ConversationService) Create(creatorID uint, title string, participantIDs []uint) (*models.Conversation, error) {
	members := map[uint]struct{}{creatorID: {}}
	for _, id := range participantIDs {
		members[id] = struct{}{}
	}

	now := time.Now()
	participants := make([]models.ConversationParticipant, 0, len(members))
	for id := range members {
		if _, err := s.users.GetByID(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("participant %d: %w", id, storage.ErrNotFound)
			}
			return nil, err
		}
		participants = append(participants, models.ConversationParticipant{UserID: id, JoinedAt: now})
	}

	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
	}
	if err := s.conversations.Create(conv, participants); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return s.conversations.GetByID(conv.ID)
}

// ListForUser returns the conversations the user participates in.
func (s *ConversationService) ListForUser(userID uint) ([]models.Conversation, error) {
	return s.conversations.ForUser(userID)
}

// Get returns a conversation the user participates in.
func (s *ConversationService) Get(userID uint, conversationID string) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(conversationID)
	if err != nil {
		return nil, err
	}
	member, err := s.conversations.IsParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrForbidden
	}
	return conv, nil
}

// AddParticipant inserts a user into an existing conversation. The caller
// must already participate.
func (s *ConversationService) AddParticipant(callerID uint, conversationID string, userID uint) error {
	if _, err := s.Get(callerID, conversationID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(userID); err != nil {
		return err
	}

	member, err := s.conversations.IsParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if member {
		return ErrDuplicateParticipant
	}

	return s.conversations.AddParticipant(&models.ConversationParticipant{
		ConversationID: conversationID,
		UserID:         userID,
		JoinedAt:       time.Now(),
	})
}

// RemoveParticipant removes a member, refusing to empty the conversation.
func (s *ConversationService) RemoveParticipant(callerID uint, conversationID string, userID uint) error {
	if _, err := s.Get(callerID, conversationID); err != nil {
		return err
	}

	count, err := s.conversations.ParticipantCount(conversationID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastParticipant
	}

	removed, err := s.conversations.RemoveParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return storage.ErrNotFound
	}
	return nil
}

// Messages returns a page of the conversation's messages, oldest first.
func (s *ConversationService) Messages(userID uint, conversationID string, limit, offset int) ([]models.Message, error) {
	if _, err := s.Get(userID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ByConversation(conversationID, limit, offset)
}

// Send posts a message into a conversation the sender participates in.
// Every other participant is notified through the created event.
func (s *ConversationService) Send(senderID uint, conversationID string, body string) (*models.Message, error) {
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}
	if _, err := s.Get(senderID, conversationID); err != nil {
		return nil, err
	}
	sender, err := s.users.GetByID(senderID)
	if err != nil {
		return nil, err
	}

	memberIDs, err := s.conversations.ParticipantIDs(conversationID)
	if err != nil {
		return nil, err
	}
	recipients := make([]uint, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		if memberID != senderID {
			recipients = append(recipients, memberID)
		}
	}

	msg := &models.Message{
		SenderID:       senderID,
		Body:           body,
		Timestamp:      time.Now(),
		ConversationID: &conversationID,
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, fmt.Errorf("create conversation message: %w", err)
	}

	s.bus.Publish(events.MessageCreated, &events.MessageCreatedPayload{
		Message:      msg,
		Sender:       sender,
		RecipientIDs: recipients,
	})
	return msg, nil
}
