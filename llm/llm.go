package llm

import (
	"context"
	"time"
)

// Role tags one side of a conversation. Only these two values are ever
// persisted; the system prompt travels out-of-band in Request.System.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Attachment is a binary payload (image, audio) sent alongside the
// latest user turn.
type Attachment struct {
	MIMEType string
	Data     []byte
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model    string
	System   string
	Messages []Message
	Media    []Attachment
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
