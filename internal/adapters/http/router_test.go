package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/app/orch"
	"github.com/dkeye/PartyRoom/internal/config"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	srv    *httptest.Server
	client *http.Client
	orch   *orch.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>party</h1>"), 0o600))

	catalog := app.DefaultCatalog()
	room := core.NewRoomService(domain.DefaultRoomSettings(), catalog)
	o := &orch.Orchestrator{
		Registry:      app.NewRegistry(),
		Room:          room,
		Policy:        app.SimplePolicy{},
		StartingCoins: 50,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := o.Start(ctx)

	cfg := &config.Config{
		Mode:       "test",
		StaticPath: static,
		ReadLimit:  1 << 16,
		PingPeriod: time.Minute,
		Secret:     "test-secret",
	}
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o, catalog))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		room.Close()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{srv: srv, client: &http.Client{Jar: jar}, orch: o}
}

func (h *harness) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := h.client.Post(h.srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (h *harness) wsURL() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/ws/signal"
}

func TestStaticAndHealth(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Get(h.srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = h.client.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = h.client.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomAndGifts(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Get(h.srv.URL + "/api/gifts")
	require.NoError(t, err)
	var gifts struct {
		Gifts []domain.Gift `json:"gifts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&gifts))
	resp.Body.Close()
	assert.Len(t, gifts.Gifts, len(app.DefaultGifts()))

	resp, err = h.client.Get(h.srv.URL + "/api/room")
	require.NoError(t, err)
	var snap core.RoomSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Len(t, snap.Seats, domain.SeatCount)
	assert.Equal(t, domain.DefaultRoomName, snap.Settings.Name)
}

func TestLoginFlow(t *testing.T) {
	h := newHarness(t)

	code, body := h.post(t, "/api/login/phone", map[string]string{"phone": "12345"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, app.ErrPhoneTooShort.Error(), body["error"])

	code, body = h.post(t, "/api/login/otp", map[string]string{"otp": "123456"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, app.ErrLoginStep.Error(), body["error"])

	code, body = h.post(t, "/api/login/phone", map[string]string{"phone": "9876543210"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(app.StepOTP), body["step"])

	code, body = h.post(t, "/api/login/change", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(app.StepPhone), body["step"])

	code, _ = h.post(t, "/api/login/phone", map[string]string{"phone": "9876543210"})
	require.Equal(t, http.StatusOK, code)

	code, body = h.post(t, "/api/login/otp", map[string]string{"otp": "12"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, app.ErrOTPLength.Error(), body["error"])

	code, body = h.post(t, "/api/login/otp", map[string]string{"otp": "123456"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(app.StepDone), body["step"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, orch.HostName, user["name"])
	assert.Equal(t, 1+1, h.orch.Room.MemberCount(), "host plus the seeded guest")
}

func TestSignalRequiresLogin(t *testing.T) {
	h := newHarness(t)

	dialer := websocket.Dialer{Jar: h.client.Jar}
	_, resp, err := dialer.Dial(h.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	h.post(t, "/api/login/phone", map[string]string{"phone": "9876543210"})
	h.post(t, "/api/login/otp", map[string]string{"otp": "654321"})

	ws, _, err := dialer.Dial(h.wsURL(), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}
	for msg.Type != "whoami" {
		require.NoError(t, ws.ReadJSON(&msg))
	}
	assert.Equal(t, domain.RoleAdmin, msg.User.Role)
}
