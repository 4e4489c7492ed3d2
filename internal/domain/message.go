package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxMessageLen = 256

var (
	ErrMessageEmpty   = errors.New("message body cannot be empty")
	ErrMessageTooLong = fmt.Errorf("message body exceeds %d characters", MaxMessageLen)
)

type MessageRole string

const (
	MessageUser   MessageRole = "user"
	MessageModel  MessageRole = "model"
	MessageSystem MessageRole = "system"
)

// ChatMessage is an entry of the append-only room chat log.
type ChatMessage struct {
	ID         string      `json:"id"`
	Role       MessageRole `json:"role"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	SenderName string      `json:"sender_name,omitempty"`
	SenderID   UserID      `json:"sender_id,omitempty"`
	IsGift     bool        `json:"is_gift,omitempty"`
	GiftName   string      `json:"gift_name,omitempty"`
}

func ValidateMessage(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(body) > MaxMessageLen {
		return ErrMessageTooLong
	}
	return nil
}
