package signal

import (
	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type userMessage struct {
	Type string      `json:"type"`
	User domain.User `json:"user"`
}

func (ctl *SignalWSController) sendWhoAmI(conn *wsSignalConn, u domain.User) {
	ctl.sendJSON(conn, userMessage{Type: "whoami", User: u})
}

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, conn *wsSignalConn) {
	u, ok := ctl.Orch.Room.User(app.UserOf(sid))
	if !ok {
		ctl.sendJSON(conn, errorMessage{Type: "error", Error: "not_in_room"})
		return
	}
	ctl.sendWhoAmI(conn, u)
}

func (ctl *SignalWSController) handleProfile(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if !ctl.decode(conn, "profile", data, &p) {
		return
	}
	u, err := ctl.Orch.UpdateProfile(sid, p.Name, p.Avatar)
	if err != nil {
		ctl.sendResult(conn, "profile", err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", u.Name).Msg("profile")
	ctl.sendResult(conn, "profile", nil)
	ctl.sendWhoAmI(conn, u)
}

func (ctl *SignalWSController) handleSearchUser(sid core.SessionID, conn *wsSignalConn, data []byte) {
	var p struct {
		DisplayID string `json:"display_id"`
	}
	if !ctl.decode(conn, "search_user", data, &p) {
		return
	}
	u, err := ctl.Orch.SearchUser(sid, p.DisplayID)
	if err != nil {
		ctl.sendResult(conn, "search_user", err)
		return
	}
	ctl.sendJSON(conn, userMessage{Type: "search_result", User: u})
}

func (ctl *SignalWSController) handleSimulateJoin(sid core.SessionID, conn *wsSignalConn) {
	_, err := ctl.Orch.SimulateJoin(sid)
	ctl.sendResult(conn, "simulate_join", err)
}
