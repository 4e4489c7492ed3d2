package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/dkeye/PartyRoom/internal/rbac"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AnimationTTL is how long a sent gift stays in the active animation set.
const AnimationTTL = 3500 * time.Millisecond

// ModelSenderName labels chat messages produced by the live co-host.
const ModelSenderName = "Co-Host"

type seat struct {
	occupant domain.UserID
	locked   bool
}

// roomImpl is a threadsafe in-memory party room.
// Every operation runs to completion under mu, and events are delivered before mu is
// released, so subscribers observe changes in mutation order.
type roomImpl struct {
	mu       sync.Mutex
	settings domain.RoomSettings
	catalog  GiftCatalog
	users    map[domain.UserID]domain.User
	order    []domain.UserID
	seats    [domain.SeatCount]seat
	messages []domain.ChatMessage
	anims    []domain.GiftAnimation
	timers   map[string]Timer // animation id -> pending removal
	pk       int
	status   domain.ConnectionStatus
	version  uint64
	closed   bool

	subs    map[int]chan Event
	nextSub int

	sched Scheduler
	now   func() time.Time
	newID func() string
}

type Option func(*roomImpl)

// WithScheduler replaces the timer source used for animation expiry.
// The scheduler must not run f synchronously inside AfterFunc.
func WithScheduler(s Scheduler) Option {
	return func(r *roomImpl) { r.sched = s }
}

func WithClock(now func() time.Time) Option {
	return func(r *roomImpl) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *roomImpl) { r.newID = newID }
}

func NewRoomService(settings domain.RoomSettings, catalog GiftCatalog, opts ...Option) RoomService {
	r := &roomImpl{
		settings: settings,
		catalog:  catalog,
		users:    make(map[domain.UserID]domain.User),
		timers:   make(map[string]Timer),
		subs:     make(map[int]chan Event),
		pk:       PKStart,
		sched:    RealScheduler(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *roomImpl) Catalog() GiftCatalog { return r.catalog }

func (r *roomImpl) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *roomImpl) Settings() domain.RoomSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

func (r *roomImpl) User(id domain.UserID) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	return u, ok
}

func (r *roomImpl) FindByDisplayID(displayID string) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if u := r.users[id]; u.DisplayID == displayID {
			return u, true
		}
	}
	return domain.User{}, false
}

func (r *roomImpl) SeatOf(id domain.UserID) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seatOfLocked(id)
}

func (r *roomImpl) Messages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *roomImpl) Join(u domain.User) error {
	if u.ID == "" {
		return ErrUnknownUser
	}
	if err := domain.ValidateName(u.Name); err != nil {
		return err
	}
	if !u.Role.Valid() {
		return domain.ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.users[u.ID]; ok {
		return ErrUserExists
	}
	r.users[u.ID] = u
	r.order = append(r.order, u.ID)
	log.Info().Str("module", "core.room").Str("user", string(u.ID)).Str("role", u.Role.String()).Msg("member joined")
	r.emitLocked(EventUsers, nil, nil)
	return nil
}

func (r *roomImpl) Leave(id domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	if _, ok := r.users[id]; !ok {
		return ErrUnknownUser
	}
	if i, ok := r.seatOfLocked(id); ok {
		r.seats[i].occupant = ""
	}
	delete(r.users, id)
	for i, uid := range r.order {
		if uid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "core.room").Str("user", string(id)).Msg("member left")
	r.emitLocked(EventUsers, nil, nil)
	return nil
}

func (r *roomImpl) ToggleSeat(index int, actorID domain.UserID) (SeatChange, error) {
	if index < 0 || index >= domain.SeatCount {
		return 0, ErrSeatOutOfRange
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrRoomClosed
	}
	actor, ok := r.users[actorID]
	if !ok {
		return 0, ErrUnknownUser
	}

	current, seated := r.seatOfLocked(actorID)
	if seated && current == index {
		r.seats[index].occupant = ""
		log.Info().Str("module", "core.room").Str("user", string(actorID)).Int("seat", index).Msg("seat left")
		r.emitLocked(EventSeats, nil, nil)
		return SeatLeft, nil
	}

	target := r.seats[index]
	if target.occupant != "" {
		return 0, ErrSeatOccupied
	}
	if target.locked && actor.Role != domain.RoleAdmin {
		return 0, ErrSeatLocked
	}

	change := SeatJoined
	if seated {
		r.seats[current].occupant = ""
		change = SeatSwitched
	}
	r.seats[index].occupant = actorID
	log.Info().Str("module", "core.room").Str("user", string(actorID)).Int("seat", index).Str("change", change.String()).Msg("seat taken")
	r.emitLocked(EventSeats, nil, nil)
	return change, nil
}

func (r *roomImpl) SetSeatLock(index int, actorID domain.UserID, locked bool) error {
	if index < 0 || index >= domain.SeatCount {
		return ErrSeatOutOfRange
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	actor, ok := r.users[actorID]
	if !ok {
		return ErrUnknownUser
	}
	if !rbac.HasPermission(actor.Role, rbac.ActionLockSeat) {
		return ErrPermissionDenied
	}
	if r.seats[index].locked == locked {
		return nil
	}
	r.seats[index].locked = locked
	log.Info().Str("module", "core.room").Int("seat", index).Bool("locked", locked).Msg("seat lock changed")
	r.emitLocked(EventSeats, nil, nil)
	return nil
}

func (r *roomImpl) Moderate(action rbac.Action, actorID, targetID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	actor, ok := r.users[actorID]
	if !ok {
		return ErrUnknownUser
	}
	target, ok := r.users[targetID]
	if !ok {
		return ErrUnknownUser
	}
	if actorID == targetID {
		return ErrSelfTarget
	}
	if !rbac.CanPerformAction(action, actor, target) {
		return ErrPermissionDenied
	}

	logger := log.With().Str("module", "core.room").Str("action", string(action)).
		Str("actor", string(actorID)).Str("target", string(targetID)).Logger()

	switch action {
	case rbac.ActionMute:
		target.IsMuted = !target.IsMuted
		r.users[targetID] = target
		r.emitLocked(EventUsers, nil, nil)
	case rbac.ActionBlock:
		target.IsBlocked = !target.IsBlocked
		r.users[targetID] = target
		r.emitLocked(EventUsers, nil, nil)
	case rbac.ActionKick:
		i, seated := r.seatOfLocked(targetID)
		if !seated {
			return ErrNotSeated
		}
		r.seats[i].occupant = ""
		r.emitLocked(EventSeats, nil, nil)
	case rbac.ActionReport:
		msg := r.appendLocked(domain.ChatMessage{
			Role: domain.MessageSystem,
			Text: fmt.Sprintf("%s was reported to the moderators", target.Name),
		})
		r.emitLocked(EventChat, &msg, nil)
	default:
		return fmt.Errorf("%w: unsupported action %q", ErrPermissionDenied, action)
	}
	logger.Info().Msg("moderation applied")
	return nil
}

func (r *roomImpl) SendGift(giftID string, senderID domain.UserID) (domain.GiftAnimation, error) {
	gift, ok := r.catalog.Gift(giftID)
	if !ok {
		return domain.GiftAnimation{}, ErrUnknownGift
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.GiftAnimation{}, ErrRoomClosed
	}
	sender, ok := r.users[senderID]
	if !ok {
		return domain.GiftAnimation{}, ErrUnknownUser
	}
	if sender.Coins < gift.Cost {
		return domain.GiftAnimation{}, ErrInsufficientFunds
	}

	sender.Coins -= gift.Cost
	r.users[senderID] = sender

	anim := domain.GiftAnimation{
		ID:         r.newID(),
		Gift:       gift,
		SenderName: sender.Name,
		CreatedAt:  r.now(),
	}
	r.anims = append(r.anims, anim)

	msg := r.appendLocked(domain.ChatMessage{
		Role:       domain.MessageUser,
		Text:       fmt.Sprintf("Sent %s x1", gift.Name),
		SenderName: sender.Name,
		SenderID:   senderID,
		IsGift:     true,
		GiftName:   gift.Name,
	})

	r.pk = min(r.pk+PKStep, PKMax)

	id := anim.ID
	r.timers[id] = r.sched.AfterFunc(AnimationTTL, func() { r.expireAnimation(id) })

	log.Info().Str("module", "core.room").Str("user", string(senderID)).Str("gift", gift.ID).
		Int64("coins_left", sender.Coins).Int("pk", r.pk).Msg("gift sent")
	r.emitLocked(EventGift, &msg, &anim)
	return anim, nil
}

// expireAnimation runs from the scheduler. It is a no-op once the room is closed
// or the animation is already gone.
func (r *roomImpl) expireAnimation(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	delete(r.timers, id)
	for i, a := range r.anims {
		if a.ID == id {
			r.anims = append(r.anims[:i], r.anims[i+1:]...)
			log.Debug().Str("module", "core.room").Str("animation", id).Msg("animation expired")
			r.emitLocked(EventAnimationExpired, nil, &a)
			return
		}
	}
}

func (r *roomImpl) PostMessage(senderID domain.UserID, text string) (domain.ChatMessage, error) {
	if err := domain.ValidateMessage(text); err != nil {
		return domain.ChatMessage{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ChatMessage{}, ErrRoomClosed
	}
	sender, ok := r.users[senderID]
	if !ok {
		return domain.ChatMessage{}, ErrUnknownUser
	}
	if sender.IsBlocked {
		return domain.ChatMessage{}, ErrUserBlocked
	}
	msg := r.appendLocked(domain.ChatMessage{
		Role:       domain.MessageUser,
		Text:       text,
		SenderName: sender.Name,
		SenderID:   senderID,
	})
	r.emitLocked(EventChat, &msg, nil)
	return msg, nil
}

func (r *roomImpl) AppendModelText(text string) domain.ChatMessage {
	return r.appendAndEmit(domain.ChatMessage{
		Role:       domain.MessageModel,
		Text:       text,
		SenderName: ModelSenderName,
	})
}

func (r *roomImpl) AppendSystem(text string) domain.ChatMessage {
	return r.appendAndEmit(domain.ChatMessage{Role: domain.MessageSystem, Text: text})
}

func (r *roomImpl) appendAndEmit(m domain.ChatMessage) domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ChatMessage{}
	}
	msg := r.appendLocked(m)
	r.emitLocked(EventChat, &msg, nil)
	return msg
}

func (r *roomImpl) UpdateSettings(actorID domain.UserID, s domain.RoomSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	actor, ok := r.users[actorID]
	if !ok {
		return ErrUnknownUser
	}
	if !rbac.HasPermission(actor.Role, rbac.ActionManageRoom) {
		return ErrPermissionDenied
	}
	live := r.status == domain.StatusConnected || r.status == domain.StatusConnecting
	if live && s.ModerationLevel != r.settings.ModerationLevel {
		return ErrModerationLocked
	}
	r.settings = s
	log.Info().Str("module", "core.room").Str("name", string(s.Name)).Str("moderation", string(s.ModerationLevel)).
		Bool("pk", s.PKMode).Msg("settings updated")
	r.emitLocked(EventSettings, nil, nil)
	return nil
}

func (r *roomImpl) UpdateProfile(id domain.UserID, name, avatar string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.User{}, ErrRoomClosed
	}
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, ErrUnknownUser
	}
	if err := u.SetUsername(name); err != nil {
		return domain.User{}, err
	}
	if avatar != "" {
		u.Avatar = avatar
	}
	r.users[id] = u
	r.emitLocked(EventUsers, nil, nil)
	return u, nil
}

func (r *roomImpl) SetConnectionStatus(s domain.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.status == s {
		return
	}
	log.Info().Str("module", "core.room").Str("from", r.status.String()).Str("to", s.String()).Msg("live status")
	r.status = s
	r.emitLocked(EventStatus, nil, nil)
}

func (r *roomImpl) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
}

func (r *roomImpl) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
	log.Info().Str("module", "core.room").Msg("room closed")
}

func (r *roomImpl) seatOfLocked(id domain.UserID) (int, bool) {
	for i, s := range r.seats {
		if s.occupant == id {
			return i, true
		}
	}
	return -1, false
}

func (r *roomImpl) appendLocked(m domain.ChatMessage) domain.ChatMessage {
	m.ID = r.newID()
	m.Timestamp = r.now()
	r.messages = append(r.messages, m)
	return m
}

func (r *roomImpl) emitLocked(kind EventKind, msg *domain.ChatMessage, anim *domain.GiftAnimation) {
	r.version++
	if len(r.subs) == 0 {
		return
	}
	ev := Event{Kind: kind, Snapshot: r.snapshotLocked(), Message: msg, Animation: anim}
	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("module", "core.room").Int("sub", id).Str("kind", string(kind)).Msg("subscriber slow, event dropped")
		}
	}
}

func (r *roomImpl) snapshotLocked() RoomSnapshot {
	seats := make([]domain.MicSlot, domain.SeatCount)
	for i, s := range r.seats {
		slot := domain.MicSlot{Index: i, IsLocked: s.locked}
		if u, ok := r.users[s.occupant]; ok && s.occupant != "" {
			slot.User = &u
		}
		seats[i] = slot
	}

	users := make([]domain.User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.users[id])
	}

	tail := r.messages
	if len(tail) > SnapshotMessages {
		tail = tail[len(tail)-SnapshotMessages:]
	}
	msgs := make([]domain.ChatMessage, len(tail))
	copy(msgs, tail)

	anims := make([]domain.GiftAnimation, len(r.anims))
	copy(anims, r.anims)

	return RoomSnapshot{
		Version:      r.version,
		Settings:     r.settings,
		Seats:        seats,
		Users:        users,
		Messages:     msgs,
		MessageCount: len(r.messages),
		Animations:   anims,
		PKProgress:   r.pk,
		Status:       r.status,
	}
}
