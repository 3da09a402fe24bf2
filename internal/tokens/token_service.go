package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/khanghh/kbooks/internal/audit"
	"github.com/khanghh/kbooks/internal/store"
	"github.com/khanghh/kbooks/internal/zoho"
)

type TokenExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*zoho.TokenBundle, error)
	Refresh(ctx context.Context, refreshToken string) (*zoho.TokenBundle, error)
}

type TokenStore interface {
	Find(ctx context.Context, userIdentifier string) (*TokenRecord, error)
	Upsert(ctx context.Context, userIdentifier string, bundle *zoho.TokenBundle) (*TokenRecord, error)
	Replace(ctx context.Context, prev *TokenRecord, bundle *zoho.TokenBundle) (*TokenRecord, error)
	Delete(ctx context.Context, userIdentifier string) (bool, error)
}

type TokenStatus struct {
	Authenticated bool
	ExpiresIn     int64 // remaining seconds, never negative
}

// IsExpired reports whether bundle expires within bufferSeconds of now.
func IsExpired(bundle *zoho.TokenBundle, bufferSeconds int64, now time.Time) bool {
	return now.UnixMilli()+bufferSeconds*1000 >= bundle.ExpiresAt()
}

// recordTokenEvent stores a lifecycle event. A failed write never fails the
// lifecycle operation itself.
func recordTokenEvent(ctx context.Context, record audit.TokenEventRecord) {
	if err := audit.RecordTokenEvent(ctx, record); err != nil {
		slog.Warn("Failed to record token event", "user", record.UserIdentifier, "event", record.EventType, "error", err)
	}
}

// TokenService drives the token lifecycle of each user: it stores tokens
// obtained from an authorization code, refreshes them shortly before they
// expire and revokes them on request. Nothing is cached between calls.
type TokenService struct {
	exchanger     TokenExchanger
	tokenStore    TokenStore
	bufferSeconds int64
	now           func() time.Time
}

func (s *TokenService) StoreFromCode(ctx context.Context, code string, userIdentifier string) (*TokenRecord, error) {
	bundle, err := s.exchanger.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}
	record, err := s.tokenStore.Upsert(ctx, userIdentifier, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}
	recordTokenEvent(ctx, audit.TokenEventRecord{
		UserIdentifier: userIdentifier,
		EventType:      audit.EventTypeTokensIssued,
		APIDomain:      bundle.APIDomain,
	})
	return record, nil
}

// GetTokens returns the stored record as is, without checking expiry.
func (s *TokenService) GetTokens(ctx context.Context, userIdentifier string) (*TokenRecord, error) {
	record, err := s.tokenStore.Find(ctx, userIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	return record, nil
}

// GetValid returns a record that stays valid for at least the buffer, refreshing
// and persisting it first when needed. It returns nil when the user has no record.
func (s *TokenService) GetValid(ctx context.Context, userIdentifier string) (*TokenRecord, error) {
	record, err := s.tokenStore.Find(ctx, userIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to get valid tokens: %w", err)
	}
	if record == nil || !IsExpired(&record.TokenBundle, s.bufferSeconds, s.now()) {
		return record, nil
	}

	refreshed, err := s.refresh(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to get valid tokens: %w", err)
	}
	return refreshed, nil
}

func (s *TokenService) refresh(ctx context.Context, record *TokenRecord) (*TokenRecord, error) {
	bundle, err := s.exchanger.Refresh(ctx, record.RefreshToken)
	if err != nil {
		recordTokenEvent(ctx, audit.TokenEventRecord{
			UserIdentifier: record.UserIdentifier,
			EventType:      audit.EventTypeTokensRefreshFailed,
			Reason:         err.Error(),
		})
		return nil, err
	}
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = record.RefreshToken
	}

	refreshed, err := s.tokenStore.Replace(ctx, record, bundle)
	if errors.Is(err, store.ErrStaleRow) {
		// another request refreshed first, use its tokens when they are usable
		current, findErr := s.tokenStore.Find(ctx, record.UserIdentifier)
		if findErr != nil {
			return nil, findErr
		}
		if current != nil && !IsExpired(&current.TokenBundle, s.bufferSeconds, s.now()) {
			slog.Debug("Token refresh lost a concurrent update", "user", record.UserIdentifier)
			return current, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	recordTokenEvent(ctx, audit.TokenEventRecord{
		UserIdentifier: record.UserIdentifier,
		EventType:      audit.EventTypeTokensRefreshed,
		APIDomain:      bundle.APIDomain,
	})
	return refreshed, nil
}

// Revoke deletes the user's record and reports whether one existed.
func (s *TokenService) Revoke(ctx context.Context, userIdentifier string) (bool, error) {
	deleted, err := s.tokenStore.Delete(ctx, userIdentifier)
	if err != nil {
		return false, fmt.Errorf("failed to revoke tokens: %w", err)
	}
	if deleted {
		recordTokenEvent(ctx, audit.TokenEventRecord{
			UserIdentifier: userIdentifier,
			EventType:      audit.EventTypeTokensRevoked,
		})
	}
	return deleted, nil
}

// Status reports whether the user has tokens and how many seconds remain
// before they expire. It never refreshes.
func (s *TokenService) Status(ctx context.Context, userIdentifier string) (*TokenStatus, error) {
	record, err := s.GetTokens(ctx, userIdentifier)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &TokenStatus{Authenticated: false}, nil
	}
	remaining := (record.ExpiresAt() - s.now().UnixMilli()) / 1000
	if remaining < 0 {
		remaining = 0
	}
	return &TokenStatus{Authenticated: true, ExpiresIn: remaining}, nil
}

func NewTokenService(exchanger TokenExchanger, tokenStore TokenStore, bufferSeconds int64) *TokenService {
	return &TokenService{
		exchanger:     exchanger,
		tokenStore:    tokenStore,
		bufferSeconds: bufferSeconds,
		now:           time.Now,
	}
}
