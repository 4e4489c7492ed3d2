package app

import "github.com/dkeye/PartyRoom/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

// Policy decides what happens to a connection whose send queue is full.
// binary is true for audio frames, false for state notifications.
type Policy interface {
	OnBackPressure(member core.MemberSession, binary bool) BackpressureAction
}

// SimplePolicy drops audio frames and kicks connections that cannot keep up with state.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ core.MemberSession, binary bool) BackpressureAction {
	if binary {
		return DropFrame
	}
	return KickMember
}
