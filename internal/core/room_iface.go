package core

import (
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/dkeye/PartyRoom/internal/rbac"
)

const (
	PKStart = 50 // even split between the two teams
	PKStep  = 5
	PKMax   = 95 // the human side always keeps a visible sliver

	// SnapshotMessages bounds the chat tail carried by a snapshot.
	SnapshotMessages = 100
)

// SeatChange reports what a successful ToggleSeat did.
type SeatChange int

const (
	SeatJoined SeatChange = iota
	SeatLeft
	SeatSwitched
)

func (c SeatChange) String() string {
	switch c {
	case SeatJoined:
		return "joined"
	case SeatLeft:
		return "left"
	case SeatSwitched:
		return "switched"
	default:
		return "unknown"
	}
}

// GiftCatalog is the immutable set of purchasable gifts.
type GiftCatalog interface {
	Gift(id string) (domain.Gift, bool)
	List() []domain.Gift
}

// RoomSnapshot is a deep copy of the room state; callers may keep and mutate it freely.
type RoomSnapshot struct {
	Version      uint64                  `json:"version"`
	Settings     domain.RoomSettings     `json:"settings"`
	Seats        []domain.MicSlot        `json:"seats"`
	Users        []domain.User           `json:"users"`
	Messages     []domain.ChatMessage    `json:"messages"`
	MessageCount int                     `json:"message_count"`
	Animations   []domain.GiftAnimation  `json:"animations"`
	PKProgress   int                     `json:"pk_progress"`
	Status       domain.ConnectionStatus `json:"status"`
}

type EventKind string

const (
	EventUsers            EventKind = "users"
	EventSeats            EventKind = "seats"
	EventChat             EventKind = "chat"
	EventGift             EventKind = "gift"
	EventAnimationExpired EventKind = "animation_expired"
	EventSettings         EventKind = "settings"
	EventStatus           EventKind = "status"
)

// Event is a change notification. Snapshot is the state right after the change.
type Event struct {
	Kind      EventKind             `json:"kind"`
	Snapshot  RoomSnapshot          `json:"state"`
	Message   *domain.ChatMessage   `json:"message,omitempty"`
	Animation *domain.GiftAnimation `json:"animation,omitempty"`
}

// RoomService is the core-facing API of the party room.
// It is the single mutation point for room state and never touches transport resources.
type RoomService interface {
	Snapshot() RoomSnapshot
	Settings() domain.RoomSettings
	User(id domain.UserID) (domain.User, bool)
	FindByDisplayID(displayID string) (domain.User, bool)
	SeatOf(id domain.UserID) (int, bool)
	Messages() []domain.ChatMessage
	MemberCount() int
	Catalog() GiftCatalog

	Join(u domain.User) error
	Leave(id domain.UserID) error
	ToggleSeat(index int, actor domain.UserID) (SeatChange, error)
	SetSeatLock(index int, actor domain.UserID, locked bool) error
	Moderate(action rbac.Action, actor, target domain.UserID) error

	SendGift(giftID string, sender domain.UserID) (domain.GiftAnimation, error)

	PostMessage(sender domain.UserID, text string) (domain.ChatMessage, error)
	AppendModelText(text string) domain.ChatMessage
	AppendSystem(text string) domain.ChatMessage

	UpdateSettings(actor domain.UserID, s domain.RoomSettings) error
	UpdateProfile(id domain.UserID, name, avatar string) (domain.User, error)
	SetConnectionStatus(s domain.ConnectionStatus)

	// Subscribe registers for change events. The returned func unsubscribes.
	Subscribe(buffer int) (<-chan Event, func())
	// Close cancels pending animation timers and closes every subscription.
	Close()
}
