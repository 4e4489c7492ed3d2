package signal

import (
	"github.com/dkeye/PartyRoom/internal/app/orch"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) sendState(conn *wsSignalConn) {
	ctl.sendJSON(conn, orch.RoomStateMessage{
		Type:  "room_state",
		State: ctl.Orch.Room.Snapshot(),
	})
}

func (ctl *SignalWSController) handleToggleSeat(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Seat int `json:"seat"`
	}
	if !ctl.decode(conn, "toggle_seat", data, &p) {
		return
	}
	change, err := ctl.Orch.ToggleSeat(sid, p.Seat)
	if err == nil {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Int("seat", p.Seat).
			Str("change", change.String()).Msg("seat")
	}
	ctl.sendResult(conn, "toggle_seat", err)
}

func (ctl *SignalWSController) handleLockSeat(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Seat   int  `json:"seat"`
		Locked bool `json:"locked"`
	}
	if !ctl.decode(conn, "lock_seat", data, &p) {
		return
	}
	ctl.sendResult(conn, "lock_seat", ctl.Orch.LockSeat(sid, p.Seat, p.Locked))
}

func (ctl *SignalWSController) handleModerate(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Action string        `json:"action"`
		Target domain.UserID `json:"target"`
	}
	if !ctl.decode(conn, "moderate", data, &p) {
		return
	}
	ctl.sendResult(conn, "moderate", ctl.Orch.Moderate(sid, p.Action, p.Target))
}

func (ctl *SignalWSController) handleSendGift(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Gift string `json:"gift"`
	}
	if !ctl.decode(conn, "send_gift", data, &p) {
		return
	}
	_, err := ctl.Orch.SendGift(sid, p.Gift)
	ctl.sendResult(conn, "send_gift", err)
}

func (ctl *SignalWSController) handleChat(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Text string `json:"text"`
	}
	if !ctl.decode(conn, "chat", data, &p) {
		return
	}
	_, err := ctl.Orch.Chat(sid, p.Text)
	ctl.sendResult(conn, "chat", err)
}

func (ctl *SignalWSController) handleSettings(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Settings domain.RoomSettings `json:"settings"`
	}
	if !ctl.decode(conn, "settings", data, &p) {
		return
	}
	ctl.sendResult(conn, "settings", ctl.Orch.UpdateSettings(sid, p.Settings))
}
