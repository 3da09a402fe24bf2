package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khanghh/kbooks/internal/store"
	"github.com/khanghh/kbooks/model"
	"github.com/khanghh/kbooks/params"
)

// maxSaveAttempts bounds the read-modify-write loop when concurrent writers
// touch the same session.
const maxSaveAttempts = 3

type MessageInput struct {
	Role    string `json:"role"    validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type MemoryService struct {
	convRepo ConversationRepository
	now      func() time.Time
}

func (s *MemoryService) newSession(sessionID, userID string) *model.Conversation {
	if userID == "" {
		userID = params.AnonymousUserID
	}
	now := s.now().UTC()
	return &model.Conversation{
		SessionID: sessionID,
		UserID:    userID,
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetOrCreateSession returns the session with sessionID, creating an empty one
// owned by userID when it does not exist yet.
func (s *MemoryService) GetOrCreateSession(ctx context.Context, sessionID, userID string) (*model.Conversation, error) {
	conv, err := s.convRepo.Find(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if conv != nil {
		return conv, nil
	}
	conv = s.newSession(sessionID, userID)
	if err := s.convRepo.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return conv, nil
}

// GetSession returns the session with only its last messageLimit messages when
// messageLimit is positive.
func (s *MemoryService) GetSession(ctx context.Context, sessionID string, messageLimit int) (*model.Conversation, error) {
	conv, err := s.convRepo.Find(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if conv == nil {
		return nil, ErrSessionNotFound
	}
	if messageLimit > 0 && len(conv.Messages) > messageLimit {
		conv.Messages = conv.Messages[len(conv.Messages)-messageLimit:]
	}
	return conv, nil
}

// update reads the session, applies mutate and saves it, retrying when another
// writer saved the session in between.
func (s *MemoryService) update(ctx context.Context, sessionID, userID string, create bool, mutate func(conv *model.Conversation)) (*model.Conversation, error) {
	for attempt := 1; ; attempt++ {
		conv, err := s.convRepo.Find(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get session: %w", err)
		}
		if conv == nil {
			if !create {
				return nil, ErrSessionNotFound
			}
			conv = s.newSession(sessionID, userID)
		}
		mutate(conv)
		conv.UpdatedAt = s.now().UTC()

		err = s.convRepo.Save(ctx, conv)
		if errors.Is(err, store.ErrStaleRow) && attempt < maxSaveAttempts {
			slog.Debug("Session changed while saving, retrying", "sessionId", sessionID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
		return conv, nil
	}
}

// StoreMessage appends a timestamped message to the session, creating the
// session when needed, and merges sessionCtx into its context.
func (s *MemoryService) StoreMessage(ctx context.Context, sessionID, userID string, input MessageInput, sessionCtx *model.SessionContext) (*model.Message, error) {
	message := model.Message{
		Role:      input.Role,
		Content:   input.Content,
		Timestamp: s.now().UTC(),
	}
	_, err := s.update(ctx, sessionID, userID, true, func(conv *model.Conversation) {
		conv.Messages = append(conv.Messages, message)
		conv.Context = MergeContext(conv.Context, sessionCtx)
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *MemoryService) UpdateContext(ctx context.Context, sessionID string, sessionCtx *model.SessionContext) (*model.SessionContext, error) {
	conv, err := s.update(ctx, sessionID, "", false, func(conv *model.Conversation) {
		conv.Context = MergeContext(conv.Context, sessionCtx)
	})
	if err != nil {
		return nil, err
	}
	return &conv.Context, nil
}

func (s *MemoryService) DeleteSession(ctx context.Context, sessionID string) error {
	deleted, err := s.convRepo.Delete(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

func NewMemoryService(convRepo ConversationRepository) *MemoryService {
	return &MemoryService{
		convRepo: convRepo,
		now:      time.Now,
	}
}
