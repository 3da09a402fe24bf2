package model

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role      string    `json:"role"      validate:"required,oneof=user assistant"`
	Content   string    `json:"content"   validate:"required"`
	Timestamp time.Time `json:"timestamp"`
}

// FunctionArgs are the arguments the assistant selected for a financial function.
type FunctionArgs struct {
	Period              string `json:"period,omitempty"`
	CompareWithPrevious bool   `json:"compareWithPrevious,omitempty"`
	Text                string `json:"text,omitempty"`
}

// FunctionResult is the outcome of a financial function call. Data keeps the
// function specific payload as returned by the financial service.
type FunctionResult struct {
	ReadableResponse string          `json:"readableResponse"`
	Data             json.RawMessage `json:"data,omitempty"`
}

type SessionContext struct {
	LastFunction  string            `json:"lastFunction,omitempty"`
	LastArguments *FunctionArgs     `json:"lastArguments,omitempty"`
	LastResult    *FunctionResult   `json:"lastResult,omitempty"`
	Entities      map[string]string `json:"entities,omitempty"`
	Preferences   map[string]string `json:"preferences,omitempty"`
}

type Conversation struct {
	Row
	SessionID string         `gorm:"size:64;not null;index" json:"sessionId"`
	UserID    string         `gorm:"size:255;not null"      json:"userId"`
	Messages  []Message      `gorm:"type:text;serializer:json" json:"messages"`
	Context   SessionContext `gorm:"type:text;serializer:json" json:"context"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (Conversation) TableName() string {
	return "conversations"
}
