package live

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		msg  *genai.LiveServerMessage
		want core.LiveMessage
		ok   bool
	}{
		{name: "nil", msg: nil},
		{name: "setup ack", msg: &genai.LiveServerMessage{SetupComplete: &genai.LiveServerSetupComplete{}}},
		{
			name: "audio chunk",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn: &genai.Content{Parts: []*genai.Part{
					{InlineData: &genai.Blob{MIMEType: "audio/pcm;rate=24000", Data: []byte{1, 2, 3, 4}}},
					nil,
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{9}}},
				}},
			}},
			want: core.LiveMessage{Audio: []byte{1, 2, 3, 4}},
			ok:   true,
		},
		{
			name: "transcription wins over part text",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn:           &genai.Content{Parts: []*genai.Part{{Text: "raw"}}},
				OutputTranscription: &genai.Transcription{Text: "Hello party"},
			}},
			want: core.LiveMessage{Text: "Hello party"},
			ok:   true,
		},
		{
			name: "part text without thoughts",
			msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{
				ModelTurn: &genai.Content{Parts: []*genai.Part{{Text: "thinking", Thought: true}, {Text: "Hi"}}},
			}},
			want: core.LiveMessage{Text: "Hi"},
			ok:   true,
		},
		{
			name: "turn complete",
			msg:  &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{TurnComplete: true}},
			want: core.LiveMessage{TurnComplete: true},
			ok:   true,
		},
		{
			name: "interrupted",
			msg:  &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{Interrupted: true}},
			want: core.LiveMessage{Interrupted: true},
			ok:   true,
		},
		{name: "empty content", msg: &genai.LiveServerMessage{ServerContent: &genai.LiveServerContent{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnectConfig(t *testing.T) {
	lc := ConnectConfig(core.LiveConfig{Voice: "Fenrir", SystemInstruction: "be fun"})
	require.Equal(t, []genai.Modality{genai.ModalityAudio}, lc.ResponseModalities)
	assert.Equal(t, "Fenrir", lc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName)
	require.NotNil(t, lc.SystemInstruction)
	require.Len(t, lc.SystemInstruction.Parts, 1)
	assert.Equal(t, "be fun", lc.SystemInstruction.Parts[0].Text)
	assert.NotNil(t, lc.OutputAudioTranscription)

	assert.Nil(t, ConnectConfig(core.LiveConfig{Voice: "Puck"}).SystemInstruction)
}

func TestIsCleanClose(t *testing.T) {
	assert.True(t, isCleanClose(&websocket.CloseError{Code: websocket.CloseNormalClosure}))
	assert.True(t, isCleanClose(fmt.Errorf("read: %w", &websocket.CloseError{Code: websocket.CloseGoingAway})))
	assert.False(t, isCleanClose(&websocket.CloseError{Code: websocket.CloseInternalServerErr}))
	assert.True(t, isCleanClose(net.ErrClosed))
	assert.True(t, isCleanClose(io.EOF))
	assert.False(t, isCleanClose(errors.New("boom")))
}
