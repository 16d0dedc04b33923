package main

import (
	"fmt"
	"os"

	"github.com/nurpe/waste-contracts/internal/auth"
	"github.com/nurpe/waste-contracts/internal/config"
	"github.com/nurpe/waste-contracts/internal/db"
	httphandler "github.com/nurpe/waste-contracts/internal/http"
	"github.com/nurpe/waste-contracts/internal/http/middleware"
	"github.com/nurpe/waste-contracts/internal/logger"
	"github.com/nurpe/waste-contracts/internal/repository"
	"github.com/nurpe/waste-contracts/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	terminationRepo := repository.NewTerminationRepository(database, repository.WithIsolation(cfg.Terminations.Isolation))
	terminationService := service.NewTerminationService(terminationRepo, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(terminationService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.CORSAllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting contracts service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
