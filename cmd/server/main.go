package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bilal/switchify-netai/internal/api"
	"github.com/bilal/switchify-netai/internal/cache"
	"github.com/bilal/switchify-netai/internal/communicator"
	"github.com/bilal/switchify-netai/internal/config"
	"github.com/bilal/switchify-netai/internal/decision"
	"github.com/bilal/switchify-netai/internal/demo"
	"github.com/bilal/switchify-netai/internal/health"
	"github.com/bilal/switchify-netai/internal/logger"
	"github.com/bilal/switchify-netai/internal/monitor"
	"github.com/bilal/switchify-netai/internal/telemetry"
)

const redisAttempts = 5

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Init logger
	logger.Init(cfg.Logging)
	log.Info().Str("addr", cfg.Server.Addr).Msg("starting switchify netai service")

	//------------------------------------------
	// DECISION ENGINE
	//------------------------------------------
	artifacts, err := decision.LoadArtifacts(cfg.Model.Dir, cfg.Model.ModelFile, cfg.Model.EncodersFile)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Model.Dir).Msg("model not loaded, using heuristics")
		artifacts = nil
	}
	engine := decision.NewEngineFromArtifacts(artifacts)
	log.Info().Str("mode", engine.Mode()).Msg("decision engine ready")

	//------------------------------------------
	// DECISION HISTORY (optional)
	//------------------------------------------
	var history api.HistoryStore
	var redisPinger health.Pinger
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		redisCache = connectRedis(cfg.Redis)
		if redisCache != nil {
			history = redisCache
			redisPinger = redisCache
		}
	}

	//------------------------------------------
	// DECISION EVENTS (optional)
	//------------------------------------------
	var publisher *communicator.Publisher
	var events api.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		w, err := communicator.NewKafkaWriter(cfg.Kafka)
		if err != nil {
			log.Warn().Err(err).Msg("decision publishing disabled")
		} else {
			publisher = communicator.New(cfg.Publisher, w)
			publisher.Start()
			events = publisher
		}
	}

	//------------------------------------------
	// TELEMETRY PIPELINE
	//------------------------------------------
	healthState := health.New(engine.Mode(), redisPinger).WithRoutes(monitor.Routes{})

	queue := telemetry.NewQueue(cfg.Queue.MaxSize)
	probe := monitor.NewLiveProbe(cfg.Probe, monitor.WithReporter(healthState))
	source := monitor.NewSource(queue, probe)
	runner := demo.NewRunner(queue, cfg.Demo.Interval, time.Now().UnixNano())

	handler := api.NewHandler(api.Deps{
		Engine:    engine,
		Queue:     queue,
		Source:    source,
		Demo:      runner,
		Health:    healthState,
		History:   history,
		Publisher: events,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// OS Signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	healthState.SetRunning(true)

	//------------------------------------------
	// WAIT FOR SHUTDOWN SIGNAL
	//------------------------------------------
	select {
	case sig := <-sigChan:
		log.Warn().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("http server failed")
	}

	//------------------------------------------
	// SHUTDOWN SEQUENCE
	//------------------------------------------
	healthState.SetRunning(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Info().Msg("stopping http server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Int("running", runner.Running()).Msg("waiting for demo simulators...")
	if err := runner.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("demo simulators still running")
	}

	if publisher != nil {
		log.Info().Msg("stopping publisher...")
		publisher.Shutdown(shutdownCtx)
	}

	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Error().Err(err).Msg("closing redis failed")
		}
	}

	log.Info().Msg("service stopped cleanly")
}

// connectRedis retries with a linear backoff and returns nil when Redis stays
// unreachable; the service then runs without history.
func connectRedis(cfg config.RedisConfig) *cache.RedisCache {
	var lastErr error
	for i := 0; i < redisAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c, err := cache.NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB, cfg.HistorySize)
		cancel()
		if err == nil {
			log.Info().Str("addr", cfg.Addr).Msg("connected to redis")
			return c
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Msg("redis connection attempt failed")
		if i < redisAttempts-1 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}
	log.Warn().Err(lastErr).Msg("running without decision history")
	return nil
}
