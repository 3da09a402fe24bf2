package store

import (
	"context"

	"github.com/khanghh/kbooks/model"
	"gorm.io/gorm"
)

type sqlTable[T any, P Entity[T]] struct {
	db *gorm.DB
}

func (t *sqlTable[T, P]) GetAllRows(ctx context.Context) ([]*T, error) {
	var rows []*T
	if err := t.db.WithContext(ctx).Model(new(T)).Order("row_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *sqlTable[T, P]) InsertRow(ctx context.Context, row *T) error {
	meta := P(row).Meta()
	if meta.RowID == 0 {
		meta.RowID = model.GenerateID()
	}
	meta.Version = 1
	return t.db.WithContext(ctx).Create(row).Error
}

func (t *sqlTable[T, P]) UpdateRow(ctx context.Context, row *T) error {
	meta := P(row).Meta()
	prev := meta.Version
	meta.Version = prev + 1
	res := t.db.WithContext(ctx).Model(row).Where("version = ?", prev).Select("*").Updates(row)
	if res.Error != nil {
		meta.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		meta.Version = prev
		return ErrStaleRow
	}
	return nil
}

func (t *sqlTable[T, P]) DeleteRow(ctx context.Context, rowID uint64) error {
	res := t.db.WithContext(ctx).Delete(new(T), rowID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqlTable[T, P]) Ping(ctx context.Context) error {
	sqlDB, err := t.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func NewSQLTable[T any, P Entity[T]](db *gorm.DB) Table[T] {
	return &sqlTable[T, P]{db: db}
}
