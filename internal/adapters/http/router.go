package http

import (
	"context"
	"net/http"

	"github.com/dkeye/PartyRoom/internal/adapters/signal"
	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/app/orch"
	"github.com/dkeye/PartyRoom/internal/config"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "PartyRoomSession"

	keyLoginStep  = "login_step"
	keyLoginPhone = "login_phone"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func loadLogin(c *gin.Context) app.LoginFlow {
	s := sessions.Default(c)
	flow := app.LoginFlow{}
	if step, ok := s.Get(keyLoginStep).(string); ok {
		flow.Step = app.LoginStep(step)
	}
	if phone, ok := s.Get(keyLoginPhone).(string); ok {
		flow.Phone = phone
	}
	return flow
}

func saveLogin(c *gin.Context, flow app.LoginFlow) error {
	s := sessions.Default(c)
	s.Set(keyLoginStep, string(flow.Step))
	s.Set(keyLoginPhone, flow.Phone)
	return s.Save()
}

// RequireLogin rejects requests whose session has not finished the login flow.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !loadLogin(c).Done() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, catalog core.GiftCatalog) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/room", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Room.Snapshot())
	})
	api.GET("/gifts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"gifts": catalog.List()})
	})

	login := api.Group("/login")
	login.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, loadLogin(c))
	})
	login.POST("/phone", func(c *gin.Context) {
		var req struct {
			Phone string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		flow := loadLogin(c)
		if err := flow.SubmitPhone(req.Phone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "step": flow.Step})
			return
		}
		persist(c, flow, nil)
	})
	login.POST("/otp", func(c *gin.Context) {
		var req struct {
			OTP string `json:"otp"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
			return
		}
		flow := loadLogin(c)
		if err := flow.SubmitOTP(req.OTP); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "step": flow.Step})
			return
		}
		sid := core.SessionID(c.GetString("client_token"))
		u, err := o.Admit(sid)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("sid", string(sid)).Msg("admit after login")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		log.Info().Str("module", "adapters.http").Str("sid", string(sid)).Msg("login complete")
		persist(c, flow, gin.H{"user": u})
	})
	login.POST("/change", func(c *gin.Context) {
		flow := loadLogin(c)
		flow.ChangeNumber()
		persist(c, flow, nil)
	})

	ctrl := signal.NewSignalWSController(o, cfg.ReadLimit, cfg.PingPeriod)
	api.GET("/ws/signal", RequireLogin(), func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}

func persist(c *gin.Context, flow app.LoginFlow, extra gin.H) {
	if err := saveLogin(c, flow); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_save_failed"})
		return
	}
	body := gin.H{"step": flow.Step, "phone": flow.Phone}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
