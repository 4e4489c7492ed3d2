// Package live drives the co-host's streaming audio session: the connection
// state machine, the single consumer of inbound model messages, and the
// encoding of microphone audio sent upstream.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dkeye/PartyRoom/internal/audio"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultVoice = "Fenrir"

	DefaultSystemInstruction = "You are the energetic co-host of a live voice party room. " +
		"Greet people, keep the conversation going and react to gifts. Keep replies short."
)

var (
	ErrNoCredential  = errors.New("live: no api key configured")
	ErrAlreadyActive = errors.New("live: session already connecting or connected")
	ErrNotConnected  = errors.New("live: session not connected")
	ErrAborted       = errors.New("live: connect aborted by disconnect")
)

// Room is the part of the room store the session reports into.
type Room interface {
	SetConnectionStatus(domain.ConnectionStatus)
	AppendModelText(text string) domain.ChatMessage
}

type event struct {
	msg core.LiveMessage
	err error
}

// Session owns at most one live connection at a time.
type Session struct {
	dialer core.LiveDialer
	cfg    core.LiveConfig
	room   Room
	sink   core.AudioSink

	mu         sync.Mutex
	status     domain.ConnectionStatus
	conn       core.LiveConn
	cancelDial context.CancelFunc
	muted      bool
	gen        uint64 // bumped on every connect/disconnect; stale goroutines compare against it
	done       chan struct{}

	sendMu sync.Mutex // LiveConn writes are not concurrency-safe
}

// New builds an idle session. sink may be nil.
func New(dialer core.LiveDialer, cfg core.LiveConfig, room Room, sink core.AudioSink) *Session {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = DefaultSystemInstruction
	}
	if cfg.InputSampleRate == 0 {
		cfg.InputSampleRate = audio.InputSampleRate
	}
	if cfg.OutputSampleRate == 0 {
		cfg.OutputSampleRate = audio.OutputSampleRate
	}
	return &Session{dialer: dialer, cfg: cfg, room: room, sink: sink}
}

func (s *Session) Status() domain.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) HasCredential() bool { return s.cfg.APIKey != "" }

// Connect dials the model. It blocks until the session is open or the dial failed.
func (s *Session) Connect(ctx context.Context) error {
	if s.cfg.APIKey == "" {
		return ErrNoCredential
	}

	s.mu.Lock()
	if s.status == domain.StatusConnecting || s.status == domain.StatusConnected {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.gen++
	gen := s.gen
	var (
		dctx   context.Context
		cancel context.CancelFunc
	)
	if s.cfg.ConnectTimeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	} else {
		dctx, cancel = context.WithCancel(ctx)
	}
	s.cancelDial = cancel
	s.setStatusLocked(domain.StatusConnecting)
	s.mu.Unlock()

	log.Info().Str("module", "app.live").Str("model", s.cfg.Model).Str("voice", s.cfg.Voice).Msg("dialing")
	conn, err := s.dialer.Dial(dctx, s.cfg)
	cancel()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrAborted
	}
	s.cancelDial = nil
	if err != nil {
		s.setStatusLocked(domain.StatusError)
		s.mu.Unlock()
		log.Error().Err(err).Str("module", "app.live").Msg("dial failed")
		return fmt.Errorf("live dial: %w", err)
	}
	s.conn = conn
	done := make(chan struct{})
	s.done = done
	s.setStatusLocked(domain.StatusConnected)
	s.mu.Unlock()

	events := make(chan event, 16)
	go readLoop(conn, events)
	go s.consume(gen, events, done)
	return nil
}

// Disconnect closes the current session or aborts a dial in progress.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.status != domain.StatusConnecting && s.status != domain.StatusConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.gen++
	conn := s.conn
	s.conn = nil
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	s.setStatusLocked(domain.StatusDisconnected)
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Str("module", "app.live").Msg("close")
		}
	}
	log.Info().Str("module", "app.live").Msg("disconnected")
	return nil
}

// Close disconnects if needed and waits for the event consumer to drain.
func (s *Session) Close() {
	_ = s.Disconnect()
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	log.Debug().Str("module", "app.live").Bool("muted", muted).Msg("mic")
}

func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// PushAudio encodes mono float samples at the input rate and streams them.
// While muted the samples are discarded and the session stays open.
func (s *Session) PushAudio(samples []float32) error {
	s.mu.Lock()
	conn, muted := s.conn, s.muted
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if muted || len(samples) == 0 {
		return nil
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return conn.SendAudio(audio.EncodePCM16(samples))
}

func readLoop(conn core.LiveConn, events chan<- event) {
	defer close(events)
	for {
		msg, err := conn.Recv()
		if err != nil {
			events <- event{err: err}
			return
		}
		events <- event{msg: msg}
	}
}

// consume is the only reader of events; each one is handled to completion.
func (s *Session) consume(gen uint64, events <-chan event, done chan<- struct{}) {
	defer close(done)
	var turn strings.Builder
	for ev := range events {
		if ev.err != nil {
			s.finish(gen, ev.err)
			continue
		}
		if !s.current(gen) {
			turn.Reset()
			continue
		}
		msg := ev.msg
		if len(msg.Audio) > 0 && s.sink != nil {
			s.sink.PlayAudio(msg.Audio, s.cfg.OutputSampleRate)
		}
		turn.WriteString(msg.Text)
		if msg.TurnComplete || msg.Interrupted {
			if text := strings.TrimSpace(turn.String()); text != "" {
				s.room.AppendModelText(text)
			}
			turn.Reset()
		}
	}
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// finish records a remote close or transport failure of connection gen
// and releases the connection.
func (s *Session) finish(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	if errors.Is(err, io.EOF) {
		log.Info().Str("module", "app.live").Msg("remote closed")
		s.setStatusLocked(domain.StatusDisconnected)
	} else {
		log.Error().Err(err).Str("module", "app.live").Msg("transport error")
		s.setStatusLocked(domain.StatusError)
	}
	s.mu.Unlock()

	if conn != nil {
		if cerr := conn.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("module", "app.live").Msg("close after failure")
		}
	}
}

func (s *Session) setStatusLocked(st domain.ConnectionStatus) {
	s.status = st
	if s.room != nil {
		s.room.SetConnectionStatus(st)
	}
}
