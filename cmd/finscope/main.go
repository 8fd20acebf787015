package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"finscope/internal/application/usecase/monitor"
	"finscope/internal/infrastructure/config"
	"finscope/internal/infrastructure/logger"
	"finscope/internal/infrastructure/svc"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	envPath := flag.String("env", ".env", "path to .env (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)
	for _, w := range cfg.Warnings() {
		log.Warn().Err(w).Msg("config warning")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	mon := monitor.NewService(sc.BuildMonitorServiceDeps())

	log.Info().
		Str("config", *configPath).
		Bool("binance", cfg.Feeds.Binance.Enabled).
		Bool("finnhub", cfg.Feeds.Finnhub.Enabled).
		Int("print_every_min", cfg.App.PrintEveryMin).
		Str("market", cfg.App.Market).
		Msg("finscope started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mon.Run(gctx) })
	if gw := sc.Gateway(); gw != nil {
		g.Go(func() error { return gw.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("finscope exited")
	}
}
