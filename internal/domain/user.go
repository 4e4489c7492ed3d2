// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxUsernameLen = 32

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrInvalidRole     = errors.New("invalid role")
)

type UserID string

// Role represents a participant's permission level in the room.
type Role int

const (
	RoleUser      Role = iota // can take seats, chat, send gifts
	RoleModerator             // can also mute
	RoleAdmin                 // full control: settings, locks, kicks
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole converts a string to a Role. Unknown values map to RoleUser.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "moderator":
		return RoleModerator
	default:
		return RoleUser
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r >= RoleUser && r <= RoleAdmin
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}

type User struct {
	ID        UserID `json:"id"`
	DisplayID string `json:"display_id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Role      Role   `json:"role"`
	IsMuted   bool   `json:"is_muted"`
	IsBlocked bool   `json:"is_blocked"`
	Level     int    `json:"level"`
	IsVIP     bool   `json:"is_vip"`
	Coins     int64  `json:"coins"`
}

// ValidateName checks a display name: non-blank and at most MaxUsernameLen runes.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrUsernameEmpty
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}

func (u *User) SetUsername(username string) error {
	if err := ValidateName(username); err != nil {
		return err
	}
	u.Name = username
	return nil
}

// PresetAvatars are the built-in profile pictures offered by the profile editor.
var PresetAvatars = []string{
	"https://api.dicebear.com/7.x/avataaars/svg?seed=Felix",
	"https://api.dicebear.com/7.x/avataaars/svg?seed=Aneka",
	"https://api.dicebear.com/7.x/avataaars/svg?seed=Bob",
	"https://api.dicebear.com/7.x/avataaars/svg?seed=Jack",
	"https://api.dicebear.com/7.x/avataaars/svg?seed=Molly",
	"https://api.dicebear.com/7.x/avataaars/svg?seed=Sarah",
}

// DefaultAvatar picks a preset for a new user based on its id.
func DefaultAvatar(id UserID) string {
	var sum int
	for _, b := range []byte(id) {
		sum += int(b)
	}
	return PresetAvatars[sum%len(PresetAvatars)]
}
