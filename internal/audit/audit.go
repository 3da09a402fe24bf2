package audit

import (
	"context"
	"sync"

	"github.com/khanghh/kbooks/model"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

const (
	EventTypeTokensIssued        = "tokens_issued"
	EventTypeTokensRefreshed     = "tokens_refreshed"
	EventTypeTokensRefreshFailed = "tokens_refresh_failed"
	EventTypeTokensRevoked       = "tokens_revoked"
)

type clientInfoKey struct{}

type clientInfo struct {
	IP        string
	UserAgent string
}

// WithClientInfo attaches the caller's address and user agent to ctx so token
// events recorded further down the call chain carry them.
func WithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, clientInfo{IP: ip, UserAgent: userAgent})
}

type TokenEventRecord struct {
	UserIdentifier string
	EventType      string
	APIDomain      string
	Reason         string
}

// RecordTokenEvent stores a token lifecycle event. It is a no-op until
// Initialize has been called.
func RecordTokenEvent(ctx context.Context, record TokenEventRecord) error {
	if auditRepo == nil {
		return nil
	}
	info, _ := ctx.Value(clientInfoKey{}).(clientInfo)
	return auditRepo.RecordEvent(ctx, &model.AuditEvent{
		UserIdentifier: record.UserIdentifier,
		EventType:      record.EventType,
		APIDomain:      record.APIDomain,
		Reason:         record.Reason,
		IP:             info.IP,
		UserAgent:      info.UserAgent,
	})
}
