package service

import (
	"fmt"
	"strings"
	"time"

	"courier/internal/events"
	"courier/internal/models"
	"courier/internal/storage"

	"gorm.io/gorm"
)

// MessageService implements direct messaging: sending, threaded replies,
// edits with history, deletion and read state.
type MessageService struct {
	db            *gorm.DB
	messages      *storage.MessageRepository
	history       *storage.HistoryRepository
	users         *storage.UserRepository
	conversations *storage.ConversationRepository
	bus           *events.Bus
}

func NewMessageService(db *gorm.DB, messages *storage.MessageRepository, history *storage.HistoryRepository, users *storage.UserRepository, conversations *storage.ConversationRepository, bus *events.Bus) *MessageService {
	return &MessageService{db: db, messages: messages, history: history, users: users, conversations: conversations, bus: bus}
}

// Send stores a new direct message and publishes the created event, which
// produces the recipient's notification.
func (s *MessageService) Send(senderID, recipientID uint, subject, body string) (*models.Message, error) {
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	sender, err := s.users.GetByID(senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(recipientID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Subject:     subject,
		Body:        body,
		Timestamp:   time.Now(),
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	s.bus.Publish(events.MessageCreated, &events.MessageCreatedPayload{Message: msg, Sender: sender})
	return msg, nil
}

// Reply attaches a new message under a parent. For a direct-message parent
// the sender must be one of the pair and the reply goes to the other
// participant; for a conversation parent the sender must be a member and
// the reply stays in the conversation, notifying every other member. An
// empty subject inherits the parent's with a "Re: " prefix.
func (s *MessageService) Reply(senderID, parentID uint, subject, body string) (*models.Message, error) {
	parent, err := s.messages.GetByID(parentID)
	if err != nil {
		return nil, err
	}
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}

	var recipientID uint
	var recipientIDs []uint
	if parent.ConversationID != nil {
		member, err := s.conversations.IsParticipant(*parent.ConversationID, senderID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrForbidden
		}
		memberIDs, err := s.conversations.ParticipantIDs(*parent.ConversationID)
		if err != nil {
			return nil, err
		}
		for _, memberID := range memberIDs {
			if memberID != senderID {
				recipientIDs = append(recipientIDs, memberID)
			}
		}
	} else {
		if parent.SenderID != senderID && parent.RecipientID != senderID {
			return nil, ErrForbidden
		}
		recipientID = parent.SenderID
		if recipientID == senderID {
			recipientID = parent.RecipientID
		}
	}

	if subject == "" {
		subject = parent.Subject
		if subject != "" && !strings.HasPrefix(subject, "Re: ") {
			subject = "Re: " + subject
		}
	}

	sender, err := s.users.GetByID(senderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:       senderID,
		RecipientID:    recipientID,
		Subject:        subject,
		Body:           body,
		Timestamp:      time.Now(),
		ParentID:       &parent.ID,
		ConversationID: parent.ConversationID,
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}

	s.bus.Publish(events.MessageCreated, &events.MessageCreatedPayload{
		Message:      msg,
		Sender:       sender,
		RecipientIDs: recipientIDs,
	})
	return msg, nil
}

// Edit rewrites subject and body of the sender's own message. A save that
// changes neither field writes nothing and fires no event; otherwise the
// old content is published so the history snapshot and edit notification
// are recorded.
func (s *MessageService) Edit(editorID, id uint, subject, body string) (*models.Message, error) {
	msg, err := s.messages.GetByID(id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != editorID {
		return nil, ErrForbidden
	}

	if msg.Subject == subject && msg.Body == body {
		return msg, nil
	}

	oldSubject, oldBody := msg.Subject, msg.Body
	now := time.Now()
	if err := s.messages.UpdateContent(id, subject, body, now); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	msg.Subject = subject
	msg.Body = body
	msg.Edited = true
	msg.LastEdited = &now

	s.bus.Publish(events.MessageUpdated, &events.MessageUpdatedPayload{
		Message:    msg,
		OldSubject: oldSubject,
		OldBody:    oldBody,
		EditorID:   editorID,
		Changed:    true,
	})
	return msg, nil
}

// Delete removes the sender's message together with its replies, then
// publishes the deleted event for dependent-row cleanup. The deleted
// message is returned so callers can tell who else saw it.
func (s *MessageService) Delete(requesterID, id uint) (*models.Message, error) {
	msg, err := s.messages.GetByID(id)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, ErrForbidden
	}

	thread, err := s.messages.Thread(id)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(thread))
	for _, m := range thread {
		ids = append(ids, m.ID)
	}

	err = storage.Transactional(s.db, func(tx *gorm.DB) error {
		if err := s.messages.DeleteReplies(id); err != nil {
			return err
		}
		return s.messages.Delete(id)
	})
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}

	s.bus.Publish(events.MessageDeleted, &events.MessageDeletedPayload{
		MessageIDs:  ids,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
	})
	return msg, nil
}

// MarkRead marks messages addressed to the user as read. Re-applying the
// call is harmless; already-read rows update nothing.
func (s *MessageService) MarkRead(recipientID uint, ids []uint) (int64, error) {
	return s.messages.MarkRead(recipientID, ids)
}

// ListConversation pages through the direct messages between two users.
func (s *MessageService) ListConversation(userID, otherID uint, limit int, beforeID uint) ([]models.Message, error) {
	return s.messages.ListBetween(userID, otherID, limit, beforeID)
}

// Roots returns the user's thread roots, newest first.
func (s *MessageService) Roots(userID uint) ([]models.Message, error) {
	return s.messages.RootsForUser(userID)
}

// UnreadMessages returns unread messages addressed to the user.
func (s *MessageService) UnreadMessages(userID uint, limit int) ([]models.Message, error) {
	return s.messages.UnreadForUser(userID, limit)
}

// UnreadCount counts unread messages addressed to the user.
func (s *MessageService) UnreadCount(userID uint) (int64, error) {
	return s.messages.UnreadCountForUser(userID)
}

// History returns the edit history of a message the user participates in.
func (s *MessageService) History(userID, messageID uint) ([]models.MessageHistory, error) {
	msg, err := s.messages.GetByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID && msg.RecipientID != userID {
		return nil, ErrForbidden
	}
	return s.history.ByMessage(messageID)
}

// Thread returns the whole thread of a root message as a nested tree with
// per-node depth. Viewing marks the root read for its recipient.
func (s *MessageService) Thread(userID, rootID uint) (*models.ThreadNode, error) {
	root, err := s.messages.GetByID(rootID)
	if err != nil {
		return nil, err
	}
	if root.SenderID != userID && root.RecipientID != userID {
		return nil, ErrForbidden
	}

	if root.RecipientID == userID && !root.IsRead {
		if _, err := s.messages.MarkRead(userID, []uint{root.ID}); err != nil {
			return nil, err
		}
		root.IsRead = true
	}

	flat, err := s.messages.Thread(rootID)
	if err != nil {
		return nil, err
	}
	return buildThreadTree(flat, rootID), nil
}

// buildThreadTree nests a flat thread query result under its root. Children
// keep the query's chronological order.
func buildThreadTree(flat []models.Message, rootID uint) *models.ThreadNode {
	nodes := make(map[uint]*models.ThreadNode, len(flat))
	for i := range flat {
		nodes[flat[i].ID] = &models.ThreadNode{Message: flat[i]}
	}

	root, ok := nodes[rootID]
	if !ok {
		return nil
	}

	for i := range flat {
		msg := &flat[i]
		if msg.ID == rootID || msg.ParentID == nil {
			continue
		}
		if parent, ok := nodes[*msg.ParentID]; ok {
			parent.Replies = append(parent.Replies, nodes[msg.ID])
		}
	}

	setDepth(root, 0)
	return root
}

func setDepth(node *models.ThreadNode, depth int) {
	node.Depth = depth
	for _, child := range node.Replies {
		setDepth(child, depth+1)
	}
}
