// Command zoneserver serves the legacy binary and modern text matchmaking
// protocols for the five supported games.
package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openzone-dev/zoneserver/internal/config"
	"github.com/openzone-dev/zoneserver/internal/games"
	"github.com/openzone-dev/zoneserver/internal/history"
	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/server"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration error")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("bad log level")
	}
	log.SetLevel(level)

	seed := cfg.RNGSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rootRNG := rand.New(rand.NewSource(seed))

	rec := history.NewRecorder(cfg.RedisAddr, log)
	defer rec.Close()
	var recorder match.Recorder
	if rec != nil {
		recorder = rec
	}

	opts := games.DefaultOptions()
	opts.Hearts.PointCeiling = cfg.HeartsCeiling
	opts.Spades.WinScore = cfg.SpadesWinScore
	opts.Spades.LoseScore = cfg.SpadesLoseScore

	registry := match.NewRegistry(games.Factory(opts), rand.New(rand.NewSource(rootRNG.Int63())), log, recorder)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go registry.Run(ctx, cfg.TickInterval)

	srv := server.New(cfg, log, registry, rand.New(rand.NewSource(rootRNG.Int63())))
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("server exited")
	}
	log.Info("shutdown complete")
}
