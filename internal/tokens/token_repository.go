package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/khanghh/kbooks/internal/store"
	"github.com/khanghh/kbooks/internal/zoho"
	"github.com/khanghh/kbooks/model"
)

// TokenRecord is the current token bundle held for one user identifier.
type TokenRecord struct {
	UserIdentifier string
	zoho.TokenBundle

	rowID   uint64
	version int64
}

type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}

// TokenRepository maps user identifiers to token records on top of a row
// store table. Lookups scan the whole table.
type TokenRepository struct {
	table  store.Table[model.OAuthToken]
	sealer Sealer
}

func (r *TokenRepository) encode(bundle *zoho.TokenBundle) (string, error) {
	data, err := json.Marshal(bundle)
	if err != nil {
		return "", err
	}
	if r.sealer == nil {
		return string(data), nil
	}
	return r.sealer.Seal(data)
}

func (r *TokenRepository) decode(row *model.OAuthToken) (*TokenRecord, error) {
	data := []byte(row.Tokens)
	if r.sealer != nil && !strings.HasPrefix(row.Tokens, "{") {
		opened, err := r.sealer.Open(row.Tokens)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptTokens, err)
		}
		data = opened
	}
	record := &TokenRecord{
		UserIdentifier: row.UserIdentifier,
		rowID:          row.RowID,
		version:        row.Version,
	}
	if err := json.Unmarshal(data, &record.TokenBundle); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTokens, err)
	}
	return record, nil
}

func (r *TokenRepository) findRow(ctx context.Context, userIdentifier string) (*model.OAuthToken, error) {
	return store.FindFirst(ctx, r.table, func(row *model.OAuthToken) bool {
		return row.UserIdentifier == userIdentifier
	})
}

// Find returns the record for userIdentifier, or nil when there is none.
func (r *TokenRepository) Find(ctx context.Context, userIdentifier string) (*TokenRecord, error) {
	row, err := r.findRow(ctx, userIdentifier)
	if err != nil || row == nil {
		return nil, err
	}
	return r.decode(row)
}

// Upsert replaces the record of userIdentifier in place or inserts a new one.
func (r *TokenRepository) Upsert(ctx context.Context, userIdentifier string, bundle *zoho.TokenBundle) (*TokenRecord, error) {
	tokens, err := r.encode(bundle)
	if err != nil {
		return nil, err
	}
	row, err := r.findRow(ctx, userIdentifier)
	if err != nil {
		return nil, err
	}
	if row != nil {
		row.Tokens = tokens
		err = r.table.UpdateRow(ctx, row)
	} else {
		row = &model.OAuthToken{UserIdentifier: userIdentifier, Tokens: tokens}
		err = r.table.InsertRow(ctx, row)
	}
	if err != nil {
		return nil, err
	}
	return &TokenRecord{
		UserIdentifier: userIdentifier,
		TokenBundle:    *bundle,
		rowID:          row.RowID,
		version:        row.Version,
	}, nil
}

// Replace overwrites prev with bundle only if the stored row has not changed
// since prev was read. store.ErrStaleRow is returned otherwise.
func (r *TokenRepository) Replace(ctx context.Context, prev *TokenRecord, bundle *zoho.TokenBundle) (*TokenRecord, error) {
	tokens, err := r.encode(bundle)
	if err != nil {
		return nil, err
	}
	row := &model.OAuthToken{
		Row:            model.Row{RowID: prev.rowID, Version: prev.version},
		UserIdentifier: prev.UserIdentifier,
		Tokens:         tokens,
	}
	if err := r.table.UpdateRow(ctx, row); err != nil {
		return nil, err
	}
	return &TokenRecord{
		UserIdentifier: prev.UserIdentifier,
		TokenBundle:    *bundle,
		rowID:          row.RowID,
		version:        row.Version,
	}, nil
}

// Delete removes the record of userIdentifier and reports whether one existed.
func (r *TokenRepository) Delete(ctx context.Context, userIdentifier string) (bool, error) {
	row, err := r.findRow(ctx, userIdentifier)
	if err != nil || row == nil {
		return false, err
	}
	err = r.table.DeleteRow(ctx, row.RowID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func NewTokenRepository(table store.Table[model.OAuthToken], sealer Sealer) *TokenRepository {
	return &TokenRepository{
		table:  table,
		sealer: sealer,
	}
}
