package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/audio"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/dkeye/PartyRoom/internal/metrics"
	"github.com/rs/zerolog/log"
)

var (
	ErrRateLimited   = errors.New("slow down")
	ErrUnknownAction = errors.New("unknown moderation action")
	ErrNotAdmitted   = errors.New("not in the room")
)

// LiveController is the co-host session as seen by the orchestrator.
type LiveController interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SetMuted(muted bool)
	PushAudio(samples []float32) error
	Status() domain.ConnectionStatus
	HasCredential() bool
}

// RoomStateMessage is the push notification sent to every connection on each change.
type RoomStateMessage struct {
	Type      string                `json:"type"`
	Event     core.EventKind        `json:"event,omitempty"`
	State     core.RoomSnapshot     `json:"state"`
	Message   *domain.ChatMessage   `json:"message,omitempty"`
	Animation *domain.GiftAnimation `json:"animation,omitempty"`
}

// Orchestrator glues client sessions to the room: it admits users, applies
// their intents to the store and fans store events back out.
type Orchestrator struct {
	Registry *app.Registry
	Room     core.RoomService
	Policy   app.Policy
	Live     LiveController // nil disables the co-host

	ChatLimit *app.RoomRateLimiter
	GiftLimit *app.RoomRateLimiter

	Scheduler        core.Scheduler
	StartingCoins    int64
	AutoConnectDelay time.Duration

	mu          sync.Mutex
	ctx         context.Context
	hostID      domain.UserID
	departed    map[domain.UserID]domain.User
	micFormats  map[domain.UserID]audio.Format
	autoConnect core.Timer
}

func (o *Orchestrator) baseCtx() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return context.Background()
	}
	return o.ctx
}

// Start subscribes to the room and fans events out to every bound connection
// until ctx is done. The returned channel closes when the loop exits.
func (o *Orchestrator) Start(ctx context.Context) <-chan struct{} {
	o.mu.Lock()
	o.ctx = ctx
	o.mu.Unlock()

	events, cancel := o.Room.Subscribe(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		defer o.stopAutoConnect()
		o.run(ctx, events)
	}()
	return done
}

func (o *Orchestrator) run(ctx context.Context, events <-chan core.Event) {
	log.Info().Str("module", "orch").Msg("fan-out started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("fan-out stopped")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.dispatch(ev)
		}
	}
}

func (o *Orchestrator) dispatch(ev core.Event) {
	metrics.RoomEvents.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Kind == core.EventStatus {
		metrics.SetLiveStatus(ev.Snapshot.Status.String())
	}
	metrics.RoomMembers.Set(float64(len(ev.Snapshot.Users)))

	o.Broadcast(RoomStateMessage{
		Type:      "room_state",
		Event:     ev.Kind,
		State:     ev.Snapshot,
		Message:   ev.Message,
		Animation: ev.Animation,
	})
}

// Broadcast sends v as a JSON text frame to every connection.
func (o *Orchestrator) Broadcast(v any) {
	frame, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("broadcast marshal")
		return
	}
	for _, snap := range o.Registry.Sessions() {
		conn := snap.Session.Signal()
		if conn == nil {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			o.onBackPressure(snap.SID, snap.Session, false)
		}
	}
}

func (o *Orchestrator) onBackPressure(sid core.SessionID, sess core.MemberSession, binary bool) {
	kind := "text"
	if binary {
		kind = "binary"
	}
	action := app.KickMember
	if o.Policy != nil {
		action = o.Policy.OnBackPressure(sess, binary)
	}
	metrics.BackpressureDrops.WithLabelValues(kind, action.String()).Inc()

	switch action {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("slow connection kicked")
		o.Registry.Cancel(sid)
	case app.DropFrame, app.NoAction:
	}
}

func (o *Orchestrator) stopAutoConnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.autoConnect != nil {
		o.autoConnect.Stop()
		o.autoConnect = nil
	}
}
