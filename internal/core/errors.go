package core

import "errors"

// Rejection reasons. Every store operation reports one of these instead of silently ignoring a request.
var (
	ErrRoomClosed        = errors.New("room closed")
	ErrUnknownUser       = errors.New("unknown user")
	ErrUserExists        = errors.New("user already in room")
	ErrSeatOutOfRange    = errors.New("seat index out of range")
	ErrSeatOccupied      = errors.New("seat occupied")
	ErrSeatLocked        = errors.New("seat locked")
	ErrNotSeated         = errors.New("user is not on a seat")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrSelfTarget        = errors.New("cannot target yourself")
	ErrUserBlocked       = errors.New("user is blocked")
	ErrUnknownGift       = errors.New("unknown gift")
	ErrInsufficientFunds = errors.New("insufficient coins")
	ErrModerationLocked  = errors.New("moderation level cannot change while the co-host is live")
)
