package model

import "time"

type AuditEvent struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	UserIdentifier string    `gorm:"size:255;not null;index"` // zoho user identifier the tokens belong to
	EventType      string    `gorm:"size:64;not null;index"`  // tokens_issued, tokens_refreshed...
	APIDomain      string    `gorm:"size:128"`                // api domain returned with the tokens (optional)
	Reason         string    `gorm:"size:512"`                // failure reason or context
	IP             string    `gorm:"size:45"`                 // IPv4/IPv6 of the caller, empty for internal refreshes
	UserAgent      string    `gorm:"size:512"`                // user agent string
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}
