package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

type RoomName string

const (
	SeatCount = 9 // 1 host + 8 guests
	HostSeat  = 0

	MaxRoomNameLen = 64
)

var (
	ErrRoomNameEmpty     = errors.New("room name empty")
	ErrRoomNameTooLong   = errors.New("room name too long")
	ErrInvalidModeration = errors.New("invalid moderation level")
)

const DefaultRoomName RoomName = "🔥 Friday Night Party 🚀"

type ModerationLevel string

const (
	ModerationChill   ModerationLevel = "chill"
	ModerationStrict  ModerationLevel = "strict"
	ModerationBouncer ModerationLevel = "bouncer"
)

func (l ModerationLevel) Valid() bool {
	switch l {
	case ModerationChill, ModerationStrict, ModerationBouncer:
		return true
	}
	return false
}

type RoomSettings struct {
	Name            RoomName        `json:"name"`
	IsPublic        bool            `json:"is_public"`
	ModerationLevel ModerationLevel `json:"moderation_level"`
	PKMode          bool            `json:"pk_mode"`
}

func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		Name:            DefaultRoomName,
		IsPublic:        true,
		ModerationLevel: ModerationStrict,
		PKMode:          true,
	}
}

func (s RoomSettings) Validate() error {
	if strings.TrimSpace(string(s.Name)) == "" {
		return ErrRoomNameEmpty
	}
	if utf8.RuneCountInString(string(s.Name)) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	if !s.ModerationLevel.Valid() {
		return ErrInvalidModeration
	}
	return nil
}

// MicSlot is one of the SeatCount fixed positions. Seat 0 is the host seat by convention only.
type MicSlot struct {
	Index    int   `json:"index"`
	User     *User `json:"user"`
	IsLocked bool  `json:"is_locked"`
}

// ConnectionStatus of the live co-host session.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disconnected":
		*s = StatusDisconnected
	case "connecting":
		*s = StatusConnecting
	case "connected":
		*s = StatusConnected
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("unknown connection status %q", b)
	}
	return nil
}
