package orch

import (
	"context"
	"errors"

	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/app/live"
	"github.com/dkeye/PartyRoom/internal/audio"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/dkeye/PartyRoom/internal/metrics"
	"github.com/rs/zerolog/log"
)

var ErrLiveDisabled = errors.New("co-host is not configured")

// Attach binds a signal connection to sid and admits its user.
// The bind precedes Admit: a replaced socket that detaches meanwhile no longer
// owns sid and leaves the user in the room.
func (o *Orchestrator) Attach(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) (core.MemberSession, domain.User, error) {
	sess := core.NewMemberSession(app.UserOf(sid)).UpdateSignal(conn)
	o.Registry.BindSignal(sid, sess, cancel)
	u, err := o.Admit(sid)
	if err != nil {
		o.Registry.Unbind(sid, sess)
		return nil, domain.User{}, err
	}
	metrics.SignalConnections.Inc()
	return sess, u, nil
}

// Detach is called when a signal connection ends. The user leaves the room unless
// the session already reconnected on another socket.
func (o *Orchestrator) Detach(sid core.SessionID, sess core.MemberSession) {
	metrics.SignalConnections.Dec()
	if !o.Registry.Unbind(sid, sess) {
		return
	}
	if err := o.Leave(sid); err != nil && !errors.Is(err, ErrNotAdmitted) {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("leave on detach")
	}
}

func (o *Orchestrator) scheduleAutoConnect() {
	if o.Live == nil || o.Scheduler == nil {
		return
	}
	if !o.Live.HasCredential() {
		log.Warn().Str("module", "orch").Msg("no api key, co-host stays offline")
		return
	}
	t := o.Scheduler.AfterFunc(o.AutoConnectDelay, func() {
		if err := o.Live.Connect(o.baseCtx()); err != nil {
			log.Warn().Err(err).Str("module", "orch").Msg("co-host auto-connect")
		}
	})
	o.mu.Lock()
	o.autoConnect = t
	o.mu.Unlock()
	log.Info().Str("module", "orch").Dur("delay", o.AutoConnectDelay).Msg("co-host auto-connect scheduled")
}

func (o *Orchestrator) LiveConnect(sid core.SessionID) error {
	err := o.liveConnect(sid)
	metrics.RecordIntent("live_connect", err)
	return err
}

func (o *Orchestrator) liveConnect(sid core.SessionID) error {
	if _, err := o.requireAdmin(sid); err != nil {
		return err
	}
	if o.Live == nil {
		return ErrLiveDisabled
	}
	o.stopAutoConnect()
	return o.Live.Connect(o.baseCtx())
}

func (o *Orchestrator) LiveDisconnect(sid core.SessionID) error {
	err := o.liveDisconnect(sid)
	metrics.RecordIntent("live_disconnect", err)
	return err
}

func (o *Orchestrator) liveDisconnect(sid core.SessionID) error {
	if _, err := o.requireAdmin(sid); err != nil {
		return err
	}
	if o.Live == nil {
		return ErrLiveDisabled
	}
	o.stopAutoConnect()
	return o.Live.Disconnect()
}

func (o *Orchestrator) LiveMute(sid core.SessionID, muted bool) error {
	if _, err := o.requireAdmin(sid); err != nil {
		metrics.RecordIntent("live_mute", err)
		return err
	}
	if o.Live == nil {
		return ErrLiveDisabled
	}
	o.Live.SetMuted(muted)
	metrics.RecordIntent("live_mute", nil)
	return nil
}

// SetMicFormat records the encoding and sample rate of the user's mic frames.
func (o *Orchestrator) SetMicFormat(sid core.SessionID, f audio.Format) error {
	u, err := o.actor(sid)
	if err != nil {
		return err
	}
	f, err = f.Normalize()
	if err != nil {
		return err
	}
	o.mu.Lock()
	if o.micFormats == nil {
		o.micFormats = make(map[domain.UserID]audio.Format)
	}
	o.micFormats[u.ID] = f
	o.mu.Unlock()
	log.Debug().Str("module", "orch").Str("sid", string(sid)).Int("rate", f.Rate).
		Str("encoding", string(f.Encoding)).Msg("mic format")
	return nil
}

func (o *Orchestrator) micFormat(uid domain.UserID) audio.Format {
	o.mu.Lock()
	defer o.mu.Unlock()
	if f, ok := o.micFormats[uid]; ok {
		return f
	}
	return audio.DefaultFormat
}

// OnAudio forwards a microphone frame to the co-host, converted to 16kHz mono.
// Frames are float32 LE at 16kHz unless the user declared another format.
// Only seated, unmuted users are heard.
func (o *Orchestrator) OnAudio(sid core.SessionID, frame []byte) error {
	if o.Live == nil {
		return ErrLiveDisabled
	}
	u, err := o.actor(sid)
	if err != nil {
		return err
	}
	if u.IsMuted {
		return nil
	}
	if _, seated := o.Room.SeatOf(u.ID); !seated {
		return core.ErrNotSeated
	}
	samples, err := o.micFormat(u.ID).ToInput(frame)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	if err := o.Live.PushAudio(samples); err != nil {
		if errors.Is(err, live.ErrNotConnected) {
			return nil
		}
		return err
	}
	metrics.LiveAudioBytes.WithLabelValues("in").Add(float64(len(samples) * 2))
	return nil
}

// PlayAudio implements core.AudioSink: model speech goes to every connection as a binary frame.
func (o *Orchestrator) PlayAudio(pcm []byte, _ int) {
	metrics.LiveAudioBytes.WithLabelValues("out").Add(float64(len(pcm)))
	for _, snap := range o.Registry.Sessions() {
		conn := snap.Session.Signal()
		if conn == nil {
			continue
		}
		if err := conn.TrySendBinary(pcm); err != nil {
			o.onBackPressure(snap.SID, snap.Session, true)
		}
	}
}

var _ core.AudioSink = (*Orchestrator)(nil)
