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

	"github.com/dkeye/callkit"
	"github.com/dkeye/callkit/internal/adapters/convapi"
	"github.com/dkeye/callkit/internal/adapters/debughttp"
	"github.com/dkeye/callkit/internal/adapters/rtcmedia"
	"github.com/dkeye/callkit/internal/adapters/signalws"
	"github.com/dkeye/callkit/internal/adapters/telemetryws"
	"github.com/dkeye/callkit/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	signalTr, err := signalws.Dial(ctx, cfg.SignalingURL, cfg.AccessToken)
	if err != nil {
		log.Fatal().Err(err).Msg("signaling dial failed")
	}

	telemetry, err := telemetryws.Dial(ctx, cfg.TelemetryURL, cfg.AccessToken, cfg.UserID)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry dial failed")
	}

	media := rtcmedia.NewProvider()
	api := convapi.New(cfg.APIBaseURL, cfg.AccessToken)

	disabled := make([]callkit.SessionType, 0, len(cfg.DisabledSessionTypes))
	for _, t := range cfg.DisabledSessionTypes {
		disabled = append(disabled, callkit.SessionType(t))
	}

	client, err := callkit.New(callkit.Config{
		UserID:               cfg.UserID,
		ConcurrentSessions:   cfg.ConcurrentSessions,
		PersistentConnection: cfg.PersistentConnection,
		DisabledSessionTypes: disabled,
		PendingExpiry:        cfg.PendingExpiry,
		EndSessionTimeout:    cfg.EndSessionTimeout,
	}, callkit.Dependencies{
		Signal:    signalTr,
		Telemetry: telemetry,
		Media:     media,
		API:       api,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("client setup failed")
	}
	defer client.Close()

	go func() {
		if err := client.Run(ctx); err != nil {
			log.Error().Err(err).Msg("engine stopped")
			cancel()
		}
	}()

	go consumeEvents(client.Events())

	r := debughttp.SetupRouter(cfg.Mode, client)
	addr := fmt.Sprintf(":%d", cfg.DebugPort)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("diagnostics server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Exited gracefully")
}

func consumeEvents(events <-chan callkit.Event) {
	for ev := range events {
		switch e := ev.(type) {
		case callkit.PendingSessionEvent:
			log.Info().
				Str("sessionId", string(e.ID)).
				Str("conversationId", string(e.ConversationID)).
				Bool("autoAnswer", e.AutoAnswer).
				Msg("incoming session")
		case callkit.SessionStartedEvent:
			log.Info().
				Str("sessionId", string(e.Session.ID)).
				Str("conversationId", string(e.Session.ConversationID)).
				Msg("session started")
		case callkit.SessionEndedEvent:
			log.Info().
				Str("sessionId", string(e.Session.ID)).
				Str("reason", e.Reason).
				Msg("session ended")
		case callkit.CancelPendingSessionEvent:
			log.Info().
				Str("sessionId", string(e.ID)).
				Msg("incoming session cancelled")
		case callkit.ConversationUpdateEvent:
			log.Info().
				Str("conversationId", string(e.ConversationID)).
				Str("activeConversationId", string(e.ActiveConversationID)).
				Int("conversations", len(e.Snapshots)).
				Msg("conversation update")
		case callkit.ErrorEvent:
			log.Error().Err(e.Err).Msg("engine error")
		}
	}
}
