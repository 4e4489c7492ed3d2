package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	var ping <-chan time.Time
	if ctl.PingPeriod > 0 {
		t := time.NewTicker(ctl.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		case f, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			kind := websocket.TextMessage
			if f.binary {
				kind = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(kind, f.data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(
	ctx context.Context,
	cancel context.CancelFunc,
	sid core.SessionID,
	sess core.MemberSession,
	c *wsSignalConn,
) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.Orch.Detach(sid, sess)
	}()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	if ctl.PingPeriod > 0 {
		pongWait := ctl.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		if ctx.Err() != nil {
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		}
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		if kind == websocket.BinaryMessage {
			if err := ctl.Orch.OnAudio(sid, data); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("audio frame dropped")
			}
			continue
		}
		ctl.handleSignal(sid, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *wsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(c, errorMessage{Type: "error", Error: "bad_json"})
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(c)
	case "whoami":
		ctl.handleWhoAmI(sid, c)
	case "state":
		ctl.sendState(c)
	case "toggle_seat":
		ctl.handleToggleSeat(sid, c, data)
	case "lock_seat":
		ctl.handleLockSeat(sid, c, data)
	case "moderate":
		ctl.handleModerate(sid, c, data)
	case "send_gift":
		ctl.handleSendGift(sid, c, data)
	case "chat":
		ctl.handleChat(sid, c, data)
	case "settings":
		ctl.handleSettings(sid, c, data)
	case "profile":
		ctl.handleProfile(sid, c, data)
	case "search_user":
		ctl.handleSearchUser(sid, c, data)
	case "simulate_join":
		ctl.handleSimulateJoin(sid, c)
	case "live_connect":
		ctl.handleLiveConnect(sid, c)
	case "live_disconnect":
		ctl.handleLiveDisconnect(sid, c)
	case "live_mute":
		ctl.handleLiveMute(sid, c, data)
	case "mic_format":
		ctl.handleMicFormat(sid, c, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendJSON(c, errorMessage{Type: "error", Error: "unknown_type"})
	}
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type resultMessage struct {
	Type   string `json:"type"`
	Op     string `json:"op"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (ctl *SignalWSController) sendResult(c *wsSignalConn, op string, err error) {
	res := resultMessage{Type: "result", Op: op, OK: err == nil}
	if err != nil {
		res.Reason = err.Error()
	}
	ctl.sendJSON(c, res)
}

// decode unmarshals a payload or replies bad_payload for op.
func (ctl *SignalWSController) decode(c *wsSignalConn, op string, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("op", op).Msg("bad payload")
		ctl.sendJSON(c, errorMessage{Type: "error", Error: "bad_payload"})
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(c *wsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("sendJSON")
	}
}
