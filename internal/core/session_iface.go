package core

import "github.com/dkeye/PartyRoom/internal/domain"

type SessionID string

// MemberSession binds a room participant and its transport endpoint.
// This is what the orchestrator fans out to.
type MemberSession interface {
	UserID() domain.UserID
	Signal() SignalConnection
	UpdateUser(domain.UserID) MemberSession
	UpdateSignal(SignalConnection) MemberSession
}
