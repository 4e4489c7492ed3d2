package orch

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/audio"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualTimer struct {
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
	delays []time.Duration
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) core.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{f: f}
	s.timers = append(s.timers, t)
	s.delays = append(s.delays, d)
	return t
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *manualScheduler) fireAll() {
	s.mu.Lock()
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped {
			t.stopped = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type fakeLive struct {
	mu       sync.Mutex
	key      bool
	connects int
	muted    bool
	samples  [][]float32
	status   domain.ConnectionStatus
}

func (l *fakeLive) Connect(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects++
	l.status = domain.StatusConnected
	return nil
}

func (l *fakeLive) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status = domain.StatusDisconnected
	return nil
}

func (l *fakeLive) SetMuted(m bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.muted = m
}

func (l *fakeLive) PushAudio(s []float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples = append(l.samples, s)
	return nil
}

func (l *fakeLive) Status() domain.ConnectionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *fakeLive) HasCredential() bool { return l.key }

func (l *fakeLive) connectCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects
}

type fakeConn struct {
	mu     sync.Mutex
	text   [][]byte
	binary [][]byte
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	c.text = append(c.text, f)
	return nil
}

func (c *fakeConn) TrySendBinary(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("backpressure")
	}
	c.binary = append(c.binary, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) states() []RoomStateMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []RoomStateMessage
	for _, f := range c.text {
		var m RoomStateMessage
		if json.Unmarshal(f, &m) == nil && m.Type == "room_state" {
			out = append(out, m)
		}
	}
	return out
}

func newTestOrch(t *testing.T, coins int64) (*Orchestrator, *manualScheduler, *fakeLive) {
	t.Helper()
	sched := &manualScheduler{}
	lv := &fakeLive{key: true}
	room := core.NewRoomService(domain.DefaultRoomSettings(), app.DefaultCatalog(), core.WithScheduler(sched))
	t.Cleanup(room.Close)
	o := &Orchestrator{
		Registry:         app.NewRegistry(),
		Room:             room,
		Policy:           app.SimplePolicy{},
		Live:             lv,
		ChatLimit:        app.NewRoomRateLimiter(5, time.Minute),
		GiftLimit:        app.NewRoomRateLimiter(3, time.Minute),
		Scheduler:        sched,
		StartingCoins:    coins,
		AutoConnectDelay: time.Second,
	}
	return o, sched, lv
}

func TestFirstAdmitBecomesHost(t *testing.T) {
	o, sched, lv := newTestOrch(t, 100)

	host, err := o.Admit("host-sid")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, host.Role)
	assert.Equal(t, HostName, host.Name)

	seat, ok := o.Room.SeatOf(host.ID)
	require.True(t, ok)
	assert.Equal(t, domain.HostSeat, seat)

	msgs := o.Room.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.MessageSystem, msgs[0].Role)
	assert.Equal(t, "Welcome to Maje Lo! Strict policies apply.", msgs[0].Text)
	assert.Equal(t, seedGuestName, msgs[1].SenderName)
	assert.Equal(t, seedGuestLine, msgs[1].Text)

	// auto-connect fires after the configured delay
	require.Len(t, sched.delays, 1)
	assert.Equal(t, time.Second, sched.delays[0])
	assert.Equal(t, 0, lv.connectCount())
	sched.fireAll()
	assert.Equal(t, 1, lv.connectCount())

	guest, err := o.Admit("guest-sid")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, guest.Role)
	assert.Equal(t, int64(100), guest.Coins)
	assert.Len(t, guest.DisplayID, 6)
	_, seated := o.Room.SeatOf(guest.ID)
	assert.False(t, seated)

	again, err := o.Admit("guest-sid")
	require.NoError(t, err)
	assert.Equal(t, guest, again)
	assert.Len(t, sched.delays, 1, "only the first admission schedules the co-host")
}

func TestNoCredentialSkipsAutoConnect(t *testing.T) {
	o, sched, lv := newTestOrch(t, 0)
	lv.key = false
	_, err := o.Admit("host")
	require.NoError(t, err)
	assert.Empty(t, sched.delays)
}

func TestLeaveAndReturn(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	_, err := o.Admit("host")
	require.NoError(t, err)
	_, err = o.Admit("bob")
	require.NoError(t, err)

	_, err = o.SendGift("bob", "heart")
	require.NoError(t, err)
	require.NoError(t, o.Leave("bob"))
	_, ok := o.Room.User(app.UserOf("bob"))
	assert.False(t, ok)
	assert.ErrorIs(t, o.Leave("bob"), ErrNotAdmitted)

	bob, err := o.Admit("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(5), bob.Coins, "balance survives a reconnect")

	require.NoError(t, o.Leave("host"))
	host, err := o.Admit("host")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, host.Role)
	seat, ok := o.Room.SeatOf(host.ID)
	require.True(t, ok)
	assert.Equal(t, domain.HostSeat, seat)
}

func TestGiftScenarios(t *testing.T) {
	o, sched, _ := newTestOrch(t, 3)
	_, err := o.Admit("host")
	require.NoError(t, err)
	poor, err := o.Admit("poor")
	require.NoError(t, err)

	before := o.Room.Snapshot()
	timers := sched.count()
	_, err = o.SendGift("poor", "heart")
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
	poor, _ = o.Room.User(poor.ID)
	assert.Equal(t, int64(3), poor.Coins)

	after := o.Room.Snapshot()
	assert.Equal(t, before.MessageCount, after.MessageCount, "no gift message")
	assert.Empty(t, after.Animations)
	assert.Equal(t, before.PKProgress, after.PKProgress)
	assert.Equal(t, timers, sched.count(), "no expiry scheduled")

	o2, _, _ := newTestOrch(t, 10)
	_, err = o2.Admit("host")
	require.NoError(t, err)
	rich, err := o2.Admit("rich")
	require.NoError(t, err)

	msgCount := len(o2.Room.Messages())
	anim, err := o2.SendGift("rich", "heart")
	require.NoError(t, err)
	assert.Equal(t, "Love", anim.Gift.Name)

	rich, _ = o2.Room.User(rich.ID)
	assert.Equal(t, int64(5), rich.Coins)
	msgs := o2.Room.Messages()
	require.Len(t, msgs, msgCount+1)
	assert.Equal(t, "Sent Love x1", msgs[len(msgs)-1].Text)
	assert.Equal(t, 55, o2.Room.Snapshot().PKProgress)
}

func TestGiftRateLimit(t *testing.T) {
	o, _, _ := newTestOrch(t, 1000)
	_, err := o.Admit("host")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = o.SendGift("host", "rose")
		require.NoError(t, err)
	}
	_, err = o.SendGift("host", "rose")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestModerationThroughOrchestrator(t *testing.T) {
	o, _, _ := newTestOrch(t, 0)
	host, err := o.Admit("host")
	require.NoError(t, err)
	bob, err := o.Admit("bob")
	require.NoError(t, err)

	assert.ErrorIs(t, o.Moderate("host", "mute", host.ID), core.ErrSelfTarget)
	assert.ErrorIs(t, o.Moderate("host", "ban", bob.ID), ErrUnknownAction)
	require.NoError(t, o.Moderate("host", "mute", bob.ID))
	bob, _ = o.Room.User(bob.ID)
	assert.True(t, bob.IsMuted)
	assert.ErrorIs(t, o.Moderate("bob", "kick", host.ID), core.ErrPermissionDenied)
}

func TestAdminTools(t *testing.T) {
	o, _, _ := newTestOrch(t, 0)
	_, err := o.Admit("host")
	require.NoError(t, err)
	bob, err := o.Admit("bob")
	require.NoError(t, err)

	_, err = o.SimulateJoin("bob")
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	before := o.Room.MemberCount()
	guest, err := o.SimulateJoin("host")
	require.NoError(t, err)
	assert.Equal(t, before+1, o.Room.MemberCount())
	assert.Contains(t, guestNames, guest.Name)

	found, err := o.SearchUser("host", " "+bob.DisplayID+" ")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, found.ID)
	_, err = o.SearchUser("host", "000000")
	assert.ErrorIs(t, err, core.ErrUnknownUser)
	_, err = o.SearchUser("bob", bob.DisplayID)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
}

func TestSettingsLockedWhileLive(t *testing.T) {
	o, _, _ := newTestOrch(t, 0)
	_, err := o.Admit("host")
	require.NoError(t, err)

	s := o.Room.Settings()
	s.ModerationLevel = domain.ModerationChill
	o.Room.SetConnectionStatus(domain.StatusConnecting)
	assert.ErrorIs(t, o.UpdateSettings("host", s), core.ErrModerationLocked)
	o.Room.SetConnectionStatus(domain.StatusDisconnected)
	assert.NoError(t, o.UpdateSettings("host", s))
}

func floatFrame(samples ...float32) []byte {
	b := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
	return b
}

func TestOnAudio(t *testing.T) {
	o, _, lv := newTestOrch(t, 0)
	_, err := o.Admit("host")
	require.NoError(t, err)
	bob, err := o.Admit("bob")
	require.NoError(t, err)

	assert.ErrorIs(t, o.OnAudio("bob", floatFrame(0.1)), core.ErrNotSeated)
	require.NoError(t, o.OnAudio("host", floatFrame(0.1, -0.2)))
	assert.Error(t, o.OnAudio("host", []byte{1, 2, 3}))

	_, err = o.ToggleSeat("bob", 5)
	require.NoError(t, err)
	require.NoError(t, o.Moderate("host", "mute", bob.ID))
	require.NoError(t, o.OnAudio("bob", floatFrame(0.3)), "muted users are silently dropped")

	lv.mu.Lock()
	defer lv.mu.Unlock()
	require.Len(t, lv.samples, 1)
	assert.Equal(t, []float32{0.1, -0.2}, lv.samples[0])
}

func TestOnAudioResamplesDeclaredFormat(t *testing.T) {
	o, _, lv := newTestOrch(t, 0)
	_, err := o.Admit("host")
	require.NoError(t, err)

	assert.ErrorIs(t, o.SetMicFormat("ghost", audio.Format{Rate: 48000}), ErrNotAdmitted)
	assert.ErrorIs(t, o.SetMicFormat("host", audio.Format{Rate: 48000, Encoding: "opus"}), audio.ErrBadFormat)
	require.NoError(t, o.SetMicFormat("host", audio.Format{Rate: 48000}))

	require.NoError(t, o.OnAudio("host", floatFrame(0, 0.1, 0.2, 0.3, 0.4, 0.5)))
	require.NoError(t, o.OnAudio("host", floatFrame(0.7)), "a frame too short to resample is skipped")

	lv.mu.Lock()
	require.Len(t, lv.samples, 1)
	assert.Len(t, lv.samples[0], 2)
	lv.mu.Unlock()

	require.NoError(t, o.Leave("host"))
	_, err = o.Admit("host")
	require.NoError(t, err)
	require.NoError(t, o.OnAudio("host", floatFrame(0.1, 0.2, 0.3)))

	lv.mu.Lock()
	defer lv.mu.Unlock()
	require.Len(t, lv.samples, 2)
	assert.Len(t, lv.samples[1], 3, "format is reset when the user leaves")
}

func TestLiveIntentsRequireAdmin(t *testing.T) {
	o, _, lv := newTestOrch(t, 0)
	_, err := o.Admit("host")
	require.NoError(t, err)
	_, err = o.Admit("bob")
	require.NoError(t, err)

	assert.ErrorIs(t, o.LiveConnect("bob"), core.ErrPermissionDenied)
	assert.ErrorIs(t, o.LiveMute("bob", true), core.ErrPermissionDenied)
	require.NoError(t, o.LiveConnect("host"))
	assert.Equal(t, 1, lv.connectCount())
	require.NoError(t, o.LiveMute("host", true))
	assert.True(t, lv.muted)
	require.NoError(t, o.LiveDisconnect("host"))
	assert.Equal(t, domain.StatusDisconnected, lv.Status())

	o.Live = nil
	assert.ErrorIs(t, o.LiveConnect("host"), ErrLiveDisabled)
}

func TestFanOut(t *testing.T) {
	o, _, _ := newTestOrch(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := o.Start(ctx)
	defer func() {
		cancel()
		<-done
	}()

	conn := &fakeConn{}
	sess, host, err := o.Attach("host", conn, func() {})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, host.Role)

	_, err = o.Chat("host", "hello room")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, m := range conn.states() {
			if m.Event == core.EventChat && m.Message != nil && m.Message.Text == "hello room" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	o.PlayAudio([]byte{1, 2, 3, 4}, 24000)
	conn.mu.Lock()
	assert.Len(t, conn.binary, 1)
	conn.mu.Unlock()

	o.Detach("host", sess)
	_, ok := o.Room.User(host.ID)
	assert.False(t, ok)
}

func TestBackpressureKicksSlowConnection(t *testing.T) {
	o, _, _ := newTestOrch(t, 0)
	_, err := o.Admit("host")
	require.NoError(t, err)

	var kicked bool
	conn := &fakeConn{full: true}
	_, _, err = o.Attach("host", conn, func() { kicked = true })
	require.NoError(t, err)

	o.PlayAudio([]byte{0, 0}, 24000)
	assert.False(t, kicked, "dropped audio does not kick")

	o.Broadcast(RoomStateMessage{Type: "room_state"})
	assert.True(t, kicked)
}

// hookRoom runs hook once, on the next User lookup.
type hookRoom struct {
	core.RoomService
	armed atomic.Bool
	hook  func()
}

func (r *hookRoom) User(id domain.UserID) (domain.User, bool) {
	if r.armed.CompareAndSwap(true, false) {
		r.hook()
	}
	return r.RoomService.User(id)
}

func TestReconnectSurvivesOldSocketDetach(t *testing.T) {
	o, _, _ := newTestOrch(t, 10)
	_, err := o.Admit("host")
	require.NoError(t, err)

	old, _, err := o.Attach("bob", &fakeConn{}, func() {})
	require.NoError(t, err)

	room := &hookRoom{RoomService: o.Room}
	room.hook = func() { o.Detach("bob", old) }
	o.Room = room
	room.armed.Store(true)

	fresh, u, err := o.Attach("bob", &fakeConn{}, func() {})
	require.NoError(t, err)
	assert.False(t, room.armed.Load(), "old socket detached during the reconnect")

	_, ok := o.Room.User(u.ID)
	assert.True(t, ok, "user stays in the room")
	bound, ok := o.Registry.GetSession("bob")
	require.True(t, ok)
	assert.Same(t, fresh, bound)
	_, err = o.Chat("bob", "still here")
	assert.NoError(t, err)
}
