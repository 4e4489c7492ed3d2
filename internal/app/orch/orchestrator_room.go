package orch

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/dkeye/PartyRoom/internal/metrics"
	"github.com/dkeye/PartyRoom/internal/rbac"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	AppName  = "Maje Lo"
	HostName = "Party King"

	seedGuestName = "Angel_Priya"
	seedGuestLine = "Hello everyone! 💖"
)

var guestNames = []string{
	"Angel_Priya", "DJ_Rocky", "Sweet_Pari", "Raj_King", "Neha_Star",
	"Crazy_Vicky", "Moon_Girl", "Bollywood_Boy", "Chai_Lover", "Dil_Se",
}

// Admit puts the session's user into the room. It is idempotent.
// The first user ever admitted becomes the admin host in the host seat, gets the
// welcome messages and schedules the co-host auto-connect.
func (o *Orchestrator) Admit(sid core.SessionID) (domain.User, error) {
	uid := app.UserOf(sid)
	if u, ok := o.Room.User(uid); ok {
		return u, nil
	}

	o.mu.Lock()
	first := o.hostID == ""
	u, returning := o.departed[uid]
	if returning {
		delete(o.departed, uid)
	} else {
		u = o.newUser(uid, "")
		if first {
			u.Name = HostName
			u.Role = domain.RoleAdmin
			u.IsVIP = true
			u.Level = 42
		}
	}
	if first {
		o.hostID = uid
	}
	o.mu.Unlock()

	if err := o.Room.Join(u); err != nil {
		if existing, ok := o.Room.User(uid); ok && errors.Is(err, core.ErrUserExists) {
			return existing, nil
		}
		return domain.User{}, fmt.Errorf("admit %s: %w", sid, err)
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("role", u.Role.String()).
		Bool("returning", returning).Msg("admitted")

	if uid == o.host() {
		if _, err := o.Room.ToggleSeat(domain.HostSeat, uid); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("host seat")
		}
	}
	if first {
		o.welcome()
		o.scheduleAutoConnect()
	}
	return u, nil
}

func (o *Orchestrator) host() domain.UserID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hostID
}

// Leave removes the session's user from the room, remembering it for a later return.
func (o *Orchestrator) Leave(sid core.SessionID) error {
	uid := app.UserOf(sid)
	u, ok := o.Room.User(uid)
	if !ok {
		return ErrNotAdmitted
	}
	if err := o.Room.Leave(uid); err != nil {
		return err
	}
	o.ChatLimit.Forget(uid)
	o.GiftLimit.Forget(uid)

	o.mu.Lock()
	if o.departed == nil {
		o.departed = make(map[domain.UserID]domain.User)
	}
	o.departed[uid] = u
	delete(o.micFormats, uid)
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) newUser(id domain.UserID, name string) domain.User {
	display := o.freeDisplayID()
	if name == "" {
		name = "Guest_" + display[len(display)-4:]
	}
	return domain.User{
		ID:        id,
		DisplayID: display,
		Name:      name,
		Avatar:    domain.DefaultAvatar(id),
		Role:      domain.RoleUser,
		Level:     1,
		Coins:     o.StartingCoins,
	}
}

func (o *Orchestrator) freeDisplayID() string {
	for {
		id := fmt.Sprintf("%06d", 100000+rand.IntN(900000))
		if _, taken := o.Room.FindByDisplayID(id); !taken {
			return id
		}
	}
}

func (o *Orchestrator) welcome() {
	level := string(o.Room.Settings().ModerationLevel)
	if level != "" {
		level = strings.ToUpper(level[:1]) + level[1:]
	}
	o.Room.AppendSystem(fmt.Sprintf("Welcome to %s! %s policies apply.", AppName, level))

	guest, err := o.spawnGuest(seedGuestName)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("seed guest")
		return
	}
	if _, err := o.Room.PostMessage(guest.ID, seedGuestLine); err != nil {
		log.Warn().Err(err).Str("module", "orch").Msg("seed guest message")
	}
}

// spawnGuest adds a simulated participant and seats it on the first free unlocked seat.
func (o *Orchestrator) spawnGuest(name string) (domain.User, error) {
	u := o.newUser(domain.UserID("sim-"+uuid.NewString()), name)
	if err := o.Room.Join(u); err != nil {
		return domain.User{}, err
	}
	for _, slot := range o.Room.Snapshot().Seats {
		if slot.Index == domain.HostSeat || slot.User != nil || slot.IsLocked {
			continue
		}
		if _, err := o.Room.ToggleSeat(slot.Index, u.ID); err == nil {
			break
		}
	}
	return u, nil
}

func (o *Orchestrator) actor(sid core.SessionID) (domain.User, error) {
	u, ok := o.Room.User(app.UserOf(sid))
	if !ok {
		return domain.User{}, ErrNotAdmitted
	}
	return u, nil
}

func (o *Orchestrator) requireAdmin(sid core.SessionID) (domain.User, error) {
	u, err := o.actor(sid)
	if err != nil {
		return domain.User{}, err
	}
	if !rbac.HasPermission(u.Role, rbac.ActionManageRoom) {
		return domain.User{}, core.ErrPermissionDenied
	}
	return u, nil
}

// SimulateJoin lets an admin spawn a fake guest.
func (o *Orchestrator) SimulateJoin(sid core.SessionID) (domain.User, error) {
	if _, err := o.requireAdmin(sid); err != nil {
		metrics.RecordIntent("simulate_join", err)
		return domain.User{}, err
	}
	u, err := o.spawnGuest(guestNames[rand.IntN(len(guestNames))])
	metrics.RecordIntent("simulate_join", err)
	if err != nil {
		return domain.User{}, err
	}
	o.Room.AppendSystem(u.Name + " joined the room")
	return u, nil
}

// SearchUser looks a participant up by the public id shown on profiles.
func (o *Orchestrator) SearchUser(sid core.SessionID, displayID string) (domain.User, error) {
	if _, err := o.requireAdmin(sid); err != nil {
		return domain.User{}, err
	}
	u, ok := o.Room.FindByDisplayID(strings.TrimSpace(displayID))
	if !ok {
		return domain.User{}, core.ErrUnknownUser
	}
	return u, nil
}

func (o *Orchestrator) ToggleSeat(sid core.SessionID, seat int) (core.SeatChange, error) {
	change, err := o.Room.ToggleSeat(seat, app.UserOf(sid))
	metrics.RecordIntent("toggle_seat", err)
	return change, err
}

func (o *Orchestrator) LockSeat(sid core.SessionID, seat int, locked bool) error {
	err := o.Room.SetSeatLock(seat, app.UserOf(sid), locked)
	metrics.RecordIntent("lock_seat", err)
	return err
}

func (o *Orchestrator) Moderate(sid core.SessionID, action string, target domain.UserID) error {
	a, ok := rbac.ParseAction(action)
	if !ok {
		metrics.RecordIntent("moderate", ErrUnknownAction)
		return ErrUnknownAction
	}
	err := o.Room.Moderate(a, app.UserOf(sid), target)
	metrics.RecordIntent("moderate", err)
	return err
}

func (o *Orchestrator) SendGift(sid core.SessionID, giftID string) (domain.GiftAnimation, error) {
	uid := app.UserOf(sid)
	if !o.GiftLimit.Allow(uid) {
		metrics.RecordIntent("send_gift", ErrRateLimited)
		return domain.GiftAnimation{}, ErrRateLimited
	}
	anim, err := o.Room.SendGift(giftID, uid)
	metrics.RecordIntent("send_gift", err)
	if err != nil {
		return domain.GiftAnimation{}, err
	}
	metrics.GiftsSent.WithLabelValues(anim.Gift.ID).Inc()
	metrics.CoinsSpent.Add(float64(anim.Gift.Cost))
	return anim, nil
}

func (o *Orchestrator) Chat(sid core.SessionID, text string) (domain.ChatMessage, error) {
	uid := app.UserOf(sid)
	if !o.ChatLimit.Allow(uid) {
		metrics.RecordIntent("chat", ErrRateLimited)
		return domain.ChatMessage{}, ErrRateLimited
	}
	msg, err := o.Room.PostMessage(uid, text)
	metrics.RecordIntent("chat", err)
	return msg, err
}

func (o *Orchestrator) UpdateSettings(sid core.SessionID, s domain.RoomSettings) error {
	err := o.Room.UpdateSettings(app.UserOf(sid), s)
	metrics.RecordIntent("settings", err)
	return err
}

func (o *Orchestrator) UpdateProfile(sid core.SessionID, name, avatar string) (domain.User, error) {
	u, err := o.Room.UpdateProfile(app.UserOf(sid), strings.TrimSpace(name), avatar)
	metrics.RecordIntent("profile", err)
	return u, err
}
