// tdtpsink reads JSON message batches from Kafka or RabbitMQ and writes them
// into relational tables, one database transaction per batch.
//
// Usage:
//
//	tdtpsink [--config sink.yaml] [--metrics-addr :9102] [--log-level info] [--log-json]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-sink/internal/api"
	"github.com/ruslano69/tdtp-sink/pkg/etl"

	_ "github.com/ruslano69/tdtp-sink/pkg/dialect/mssql"
	_ "github.com/ruslano69/tdtp-sink/pkg/dialect/mysql"
	_ "github.com/ruslano69/tdtp-sink/pkg/dialect/postgres"
	_ "github.com/ruslano69/tdtp-sink/pkg/dialect/sqlite"
	_ "github.com/ruslano69/tdtp-sink/pkg/dialect/timescale"
)

func main() {
	flags := ParseFlags()

	if *flags.Version {
		PrintVersion()
		return
	}
	if *flags.Help {
		PrintHelp()
		return
	}
	if *flags.ListDialects {
		PrintDialects()
		return
	}
	if *flags.CreateConfig != "" {
		if err := createConfigTemplate(*flags.CreateConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	setupLogging(*flags.LogLevel, *flags.LogJSON)

	config, err := etl.LoadConfig(*flags.Config)
	if err != nil {
		log.Fatal().Err(err).Str("config", *flags.Config).Msg("config load failed")
	}
	if *flags.MetricsAddr != "" {
		config.Metrics.Addr = *flags.MetricsAddr
	}

	processor, err := etl.Build(config)
	if err != nil {
		log.Fatal().Err(err).Msg("sink setup failed")
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *http.Server
	if config.Metrics.Addr != "" {
		srv = &http.Server{
			Addr:         config.Metrics.Addr,
			Handler:      api.NewRouter(processor),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("metrics endpoint started")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	runErr := processor.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown error")
		}
	}

	stats := processor.GetStats()
	log.Info().
		Int("batches", stats.Batches).
		Int("failed_batches", stats.FailedBatches).
		Int("records", stats.RecordsWritten).
		Dur("uptime", time.Since(stats.StartTime)).
		Msg("stopped")

	if runErr != nil {
		log.Error().Err(runErr).Msg("sink failed")
		os.Exit(1)
	}
}

func setupLogging(level string, jsonOutput bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
