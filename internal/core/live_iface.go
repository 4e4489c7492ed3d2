package core

import (
	"context"
	"time"
)

// LiveConfig describes the external conversational-audio session to open.
type LiveConfig struct {
	APIKey            string
	Model             string
	Voice             string
	SystemInstruction string
	InputSampleRate   int
	OutputSampleRate  int
	ConnectTimeout    time.Duration
}

// LiveMessage is one inbound model message, already decoded from the wire format.
type LiveMessage struct {
	Text         string // model text or output transcription fragment
	Audio        []byte // PCM16 LE at LiveConfig.OutputSampleRate
	TurnComplete bool
	Interrupted  bool
}

// LiveConn is an open bidirectional audio/text session. Recv blocks until the next
// message; it returns io.EOF after a clean remote close.
type LiveConn interface {
	SendAudio(pcm []byte) error
	Recv() (LiveMessage, error)
	Close() error
}

// LiveDialer opens sessions. The transport adapter implements it; tests inject fakes.
type LiveDialer interface {
	Dial(ctx context.Context, cfg LiveConfig) (LiveConn, error)
}

// AudioSink receives decoded model audio.
type AudioSink interface {
	PlayAudio(pcm []byte, sampleRate int)
}
