package core

import "github.com/dkeye/PartyRoom/internal/domain"

// memberSession implements MemberSession as an immutable pair; updates return a copy.
type memberSession struct {
	user   domain.UserID
	signal SignalConnection
}

func NewMemberSession(user domain.UserID) MemberSession {
	return &memberSession{user: user}
}

func (m *memberSession) UserID() domain.UserID    { return m.user }
func (m *memberSession) Signal() SignalConnection { return m.signal }

func (m *memberSession) UpdateUser(id domain.UserID) MemberSession {
	return &memberSession{user: id, signal: m.signal}
}

func (m *memberSession) UpdateSignal(c SignalConnection) MemberSession {
	return &memberSession{user: m.user, signal: c}
}
