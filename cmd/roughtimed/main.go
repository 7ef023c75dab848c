// Command roughtimed runs a Roughtime time server.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/quietcore/roughtimed/config"
	"github.com/quietcore/roughtimed/internal/health"
	"github.com/quietcore/roughtimed/internal/logging"
	"github.com/quietcore/roughtimed/kms"
	"github.com/quietcore/roughtimed/server"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("ROUGHENOUGH_CONFIG"), "path to YAML config file")
	logLevel := flag.String("log-level", "info", "log level: trace|debug|info|warn|error")
	flag.Parse()

	log := logging.New(*logLevel)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	seed, err := kms.LoadSeed(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("loading seed")
	}

	var counters *health.Counters
	if cfg.HealthCheckPort != 0 {
		c, reg := health.NewCounters()
		counters = c
		go func() {
			addr := net.JoinHostPort(cfg.Interface, strconv.Itoa(cfg.HealthCheckPort))
			srv := &http.Server{
				Addr:              addr,
				Handler:           health.Router(reg),
				ReadHeaderTimeout: 5 * time.Second,
			}
			log.Info().Str("addr", addr).Msg("health listener starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("health listener failed")
			}
		}()
	}

	srv, err := server.New(cfg, seed, log, counters)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn().Msg("shutdown signal received, draining in-flight batch")
		srv.ShutdownFlag().Store(false)
	}()

	log.Info().
		Str("public_key", srv.PublicKeyHex()).
		Str("addr", srv.LocalAddr().String()).
		Msg("roughtimed starting")

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server exited with error")
	}
}
