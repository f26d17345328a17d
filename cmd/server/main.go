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

	router "github.com/NooksApp/accelerator-core/internal/adapters/http"
	"github.com/NooksApp/accelerator-core/internal/adapters/rtc"
	"github.com/NooksApp/accelerator-core/internal/config"
	"github.com/NooksApp/accelerator-core/internal/modules"
	"github.com/NooksApp/accelerator-core/internal/session"
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
		log.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}

	provider := rtc.New(cfg.SignalingURL)
	core, err := session.New(cfg, provider)
	if err != nil {
		log.Error().Err(err).Msg("failed to build session core")
		os.Exit(1)
	}

	mods := modules.Set{}
	if cfg.Modules.TextChat {
		mods.TextChat = modules.NewTextChat("local")
	}
	if cfg.Modules.ScreenSharing {
		mods.ScreenSharing = modules.NewScreenSharing()
	}
	for _, mod := range mods.All() {
		if err := core.Use(mod); err != nil {
			log.Error().Err(err).Msg("failed to start feature module")
			os.Exit(1)
		}
	}

	if err := core.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("failed to connect session")
		os.Exit(1)
	}

	r := router.SetupRouter(cfg, core)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("accelerator core started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	if err := core.Disconnect(); err != nil {
		log.Error().Err(err).Msg("session disconnect")
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
