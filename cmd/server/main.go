package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Brownie44l1/inference-api/internal/app"
	"github.com/Brownie44l1/inference-api/internal/handlers"
	"github.com/rs/zerolog/log"
)

func main() {
	a, err := app.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize inference server")
	}
	defer a.Close()

	router := handlers.NewRouter(handlers.NewHandler(a.Pipeline, a.Config.HTTPMaxBodyBytes), a.Config.AppEnv)
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(a.Config.AppPort),
		Handler: router,
	}

	log.Info().Msgf("Server starting on port %d", a.Config.AppPort)
	log.Info().Msg("Endpoints:")
	log.Info().Msg("  GET  /health        - Health check")
	log.Info().Msgf("  POST /predict       - %s request payload", a.Pipeline.Task())
	log.Info().Msg("  POST /predict/image - Classify an uploaded image")
	log.Info().Msg("  POST /invoke        - Serverless event, returns the response envelope")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
