package memory

import (
	"context"
	"errors"

	"github.com/khanghh/kbooks/internal/store"
	"github.com/khanghh/kbooks/model"
)

type ConversationRepository interface {
	Find(ctx context.Context, sessionID string) (*model.Conversation, error)
	Save(ctx context.Context, conv *model.Conversation) error
	Delete(ctx context.Context, sessionID string) (bool, error)
}

type conversationRepository struct {
	table store.Table[model.Conversation]
}

func (r *conversationRepository) Find(ctx context.Context, sessionID string) (*model.Conversation, error) {
	return store.FindFirst(ctx, r.table, func(row *model.Conversation) bool {
		return row.SessionID == sessionID
	})
}

// Save inserts conversations that have never been stored and updates the rest.
// Updates fail with store.ErrStaleRow when the row changed since it was read.
func (r *conversationRepository) Save(ctx context.Context, conv *model.Conversation) error {
	if conv.RowID == 0 {
		return r.table.InsertRow(ctx, conv)
	}
	return r.table.UpdateRow(ctx, conv)
}

func (r *conversationRepository) Delete(ctx context.Context, sessionID string) (bool, error) {
	conv, err := r.Find(ctx, sessionID)
	if err != nil || conv == nil {
		return false, err
	}
	err = r.table.DeleteRow(ctx, conv.RowID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func NewConversationRepository(table store.Table[model.Conversation]) ConversationRepository {
	return &conversationRepository{table: table}
}
