package store

import (
	"context"
	"errors"

	"github.com/khanghh/kbooks/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrStaleRow = errors.New("row was modified concurrently")
)

// Entity is satisfied by pointers to row models that embed model.Row.
type Entity[T any] interface {
	*T
	Meta() *model.Row
}

// Table is a schema-light collection of rows. Rows are addressed by their
// storage-assigned row id and located by scanning the whole table.
type Table[T any] interface {
	GetAllRows(ctx context.Context) ([]*T, error)
	// InsertRow assigns a row id when the row has none and stores the row at version 1.
	InsertRow(ctx context.Context, row *T) error
	// UpdateRow replaces the row only if the stored version still matches the
	// row's version, and bumps the version. ErrStaleRow is returned otherwise.
	UpdateRow(ctx context.Context, row *T) error
	DeleteRow(ctx context.Context, rowID uint64) error
	Ping(ctx context.Context) error
}
