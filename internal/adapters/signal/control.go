package signal

import (
	"github.com/dkeye/PartyRoom/internal/audio"
	"github.com/dkeye/PartyRoom/internal/core"
)

func (ctl *SignalWSController) handlePing(conn *wsSignalConn) {
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{Type: "pong"})
}

// handleLiveConnect dials in the background so the read pump keeps serving the socket.
func (ctl *SignalWSController) handleLiveConnect(sid core.SessionID, conn *wsSignalConn) {
	go func() {
		ctl.sendResult(conn, "live_connect", ctl.Orch.LiveConnect(sid))
	}()
}

func (ctl *SignalWSController) handleLiveDisconnect(sid core.SessionID, conn *wsSignalConn) {
	ctl.sendResult(conn, "live_disconnect", ctl.Orch.LiveDisconnect(sid))
}

func (ctl *SignalWSController) handleLiveMute(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Muted bool `json:"muted"`
	}
	if !ctl.decode(conn, "live_mute", data, &p) {
		return
	}
	ctl.sendResult(conn, "live_mute", ctl.Orch.LiveMute(sid, p.Muted))
}

func (ctl *SignalWSController) handleMicFormat(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p audio.Format
	if !ctl.decode(conn, "mic_format", data, &p) {
		return
	}
	ctl.sendResult(conn, "mic_format", ctl.Orch.SetMicFormat(sid, p))
}
