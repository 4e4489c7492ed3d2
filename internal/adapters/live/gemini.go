// Package live implements core.LiveDialer on top of the Gemini Live API.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"

	"github.com/dkeye/PartyRoom/internal/audio"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

type GeminiDialer struct{}

func NewGeminiDialer() *GeminiDialer { return &GeminiDialer{} }

func (GeminiDialer) Dial(ctx context.Context, cfg core.LiveConfig) (core.LiveConn, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	sess, err := client.Live.Connect(ctx, cfg.Model, ConnectConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("live connect: %w", err)
	}
	log.Info().Str("module", "adapters.live").Str("model", cfg.Model).Msg("session open")
	return &geminiConn{sess: sess}, nil
}

// ConnectConfig requests spoken replies in the configured prebuilt voice,
// plus a transcription of them for the chat log.
func ConnectConfig(cfg core.LiveConfig) *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.SystemInstruction != "" {
		lc.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}
	return lc
}

type geminiConn struct {
	sess   *genai.Session
	closed atomic.Bool
}

func (c *geminiConn) SendAudio(pcm []byte) error {
	return c.sess.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: audio.InputMIMEType},
	})
}

// Recv skips control messages (setup acks, usage metadata) until model content arrives.
func (c *geminiConn) Recv() (core.LiveMessage, error) {
	for {
		msg, err := c.sess.Receive()
		if err != nil {
			if c.closed.Load() || isCleanClose(err) {
				return core.LiveMessage{}, io.EOF
			}
			return core.LiveMessage{}, err
		}
		if out, ok := Translate(msg); ok {
			return out, nil
		}
	}
}

func (c *geminiConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.sess.Close()
}

func isCleanClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}

// Translate maps a server message to a LiveMessage. It reports false for
// messages that carry no model content.
func Translate(msg *genai.LiveServerMessage) (core.LiveMessage, bool) {
	if msg == nil || msg.ServerContent == nil {
		return core.LiveMessage{}, false
	}
	sc := msg.ServerContent
	out := core.LiveMessage{
		TurnComplete: sc.TurnComplete,
		Interrupted:  sc.Interrupted,
	}

	var partText strings.Builder
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p == nil {
				continue
			}
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/") {
				out.Audio = append(out.Audio, p.InlineData.Data...)
			}
			if p.Text != "" && !p.Thought {
				partText.WriteString(p.Text)
			}
		}
	}

	// with audio output the transcription is the readable version of the turn
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out.Text = sc.OutputTranscription.Text
	} else {
		out.Text = partText.String()
	}

	if out.Text == "" && len(out.Audio) == 0 && !out.TurnComplete && !out.Interrupted {
		return core.LiveMessage{}, false
	}
	return out, true
}
