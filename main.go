package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nixxel-company-limited/zpl-print-server/adapter"
	"github.com/nixxel-company-limited/zpl-print-server/config"
	"github.com/nixxel-company-limited/zpl-print-server/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	device, err := adapter.New(cfg.Printer)
	if err != nil {
		log.Fatal().Err(err).Msg("configure printer backend")
	}
	defer device.Close()
	log.Info().Str("backend", device.Kind()).Msg("printer backend selected")

	svr := server.New(device, cfg.Server.Address, server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         &log.Logger,
	})
	if err := svr.StartAsync(); err != nil {
		log.Fatal().Err(err).Msg("start server")
	}

	<-ctx.Done()

	if err := svr.Stop(); err != nil {
		log.Error().Err(err).Msg("stop server")
	}
}
