package model

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var snowflakeNode *snowflake.Node

var Models = []interface{}{
	&OAuthToken{}, &Conversation{}, &AuditEvent{},
}

func init() {
	var err error
	snowflakeNode, err = snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
}

func GenerateID() uint64 {
	return uint64(snowflakeNode.Generate())
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models...)
}

// Row carries the storage-assigned identity of a row store record and the
// version used for conditional updates.
type Row struct {
	RowID   uint64 `gorm:"primaryKey;autoIncrement:false" json:"rowId"`
	Version int64  `gorm:"not null;default:0"             json:"version"`
}

func (r *Row) Meta() *Row {
	return r
}
