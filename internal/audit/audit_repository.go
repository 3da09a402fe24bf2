package audit

import (
	"context"

	"github.com/khanghh/kbooks/model"
	"gorm.io/gorm"
)

type AuditEventRepository interface {
	RecordEvent(ctx context.Context, event *model.AuditEvent) error
}

type auditEventRepository struct {
	db *gorm.DB
}

func (r *auditEventRepository) RecordEvent(ctx context.Context, event *model.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func NewAuditEventRepository(db *gorm.DB) AuditEventRepository {
	return &auditEventRepository{
		db: db,
	}
}
