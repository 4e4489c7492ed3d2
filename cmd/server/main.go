package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/PartyRoom/internal/adapters/http"
	"github.com/dkeye/PartyRoom/internal/adapters/events"
	gemini "github.com/dkeye/PartyRoom/internal/adapters/live"
	"github.com/dkeye/PartyRoom/internal/app"
	"github.com/dkeye/PartyRoom/internal/app/live"
	"github.com/dkeye/PartyRoom/internal/app/orch"
	"github.com/dkeye/PartyRoom/internal/audio"
	"github.com/dkeye/PartyRoom/internal/config"
	"github.com/dkeye/PartyRoom/internal/core"
	"github.com/dkeye/PartyRoom/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	catalog, err := app.LoadCatalog(cfg.GiftsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.GiftsFile).Msg("failed to load gift catalog")
	}

	settings := domain.DefaultRoomSettings()
	settings.Name = domain.RoomName(cfg.RoomName)
	if err := settings.Validate(); err != nil {
		log.Fatal().Err(err).Str("room_name", cfg.RoomName).Msg("invalid room settings")
	}

	sched := core.RealScheduler()
	room := core.NewRoomService(settings, catalog, core.WithScheduler(sched))
	defer room.Close()

	o := &orch.Orchestrator{
		Registry:         app.NewRegistry(),
		Room:             room,
		Policy:           app.SimplePolicy{},
		ChatLimit:        app.NewRoomRateLimiter(cfg.Rate.ChatPerWindow, cfg.Rate.Window),
		GiftLimit:        app.NewRoomRateLimiter(cfg.Rate.GiftsPerWindow, cfg.Rate.Window),
		Scheduler:        sched,
		StartingCoins:    cfg.StartingCoins,
		AutoConnectDelay: cfg.Live.AutoConnectDelay,
	}

	cohost := live.New(gemini.NewGeminiDialer(), core.LiveConfig{
		APIKey:           cfg.Live.APIKey,
		Model:            cfg.Live.Model,
		Voice:            cfg.Live.Voice,
		InputSampleRate:  audio.InputSampleRate,
		OutputSampleRate: audio.OutputSampleRate,
		ConnectTimeout:   cfg.Live.ConnectTimeout,
	}, room, o)
	defer cohost.Close()
	o.Live = cohost

	if cfg.RedisURL != "" {
		rdb, err := events.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("redis unavailable, event bridge disabled")
		} else {
			defer rdb.Close()
			pub := events.NewPublisher(rdb, cfg.RoomName)
			roomEvents, unsubscribe := room.Subscribe(256)
			defer unsubscribe()
			log.Info().Str("channel", pub.Channel()).Msg("event bridge enabled")
			go pub.Run(ctx, roomEvents)
		}
	}
	fanout := o.Start(ctx)

	r := router.SetupRouter(ctx, cfg, o, catalog)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("room", cfg.RoomName).Msg("PartyRoom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-fanout
	log.Info().Msg("Server exited gracefully")
}
