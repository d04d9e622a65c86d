package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fieldops-gateway/internal/api"
	"fieldops-gateway/internal/auth"
	"fieldops-gateway/internal/broker"
	"fieldops-gateway/internal/config"
	"fieldops-gateway/internal/crew"
	"fieldops-gateway/internal/ingest"
	"fieldops-gateway/internal/model"
	"fieldops-gateway/internal/risk"
	"fieldops-gateway/internal/routing"
	"fieldops-gateway/internal/site"
)

func main() {
	configPath := flag.String("config", ".", "path to the configuration file directory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := newLogger(cfg)

	// Services, leaf-first. Everything is passed by reference; there are no
	// package-level singletons.
	hub := broker.New(cfg.Buffers.Subscriber, log)
	advisories := ingest.NewAdvisoryLog(cfg.Buffers.Advisories)
	gateway := ingest.NewGateway(cfg.Buffers.History, thresholdTable(cfg), hub, advisories, log)
	crews := crew.NewService(cfg.Buffers.Track, hub, log)
	sites := site.NewRegistry()
	authManager := auth.NewManager(cfg)

	seed(cfg, crews, sites, log)

	var primary routing.PathResolver
	if cfg.Routing.APIKey != "" {
		primary = routing.NewORSClient(cfg.Routing.Endpoint, cfg.Routing.APIKey,
			time.Duration(cfg.Routing.TimeoutSeconds)*time.Second, log)
	}
	resolver := routing.NewFallback(primary, routing.Synthetic{}, log)

	handler := api.NewHandler(cfg, gateway, advisories, crews, sites, hub, authManager, resolver, log)

	dataServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.DataPort),
		Handler: api.NewDataRouter(handler, authManager, log),
	}
	dashboardServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.DashboardPort),
		Handler: api.NewDashboardRouter(handler, authManager, log),
	}

	go func() {
		log.Info().Int("port", cfg.Server.DataPort).Msg("data ingestion server listening")
		if err := dataServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("data server failed")
		}
	}()
	go func() {
		log.Info().Int("port", cfg.Server.DashboardPort).Msg("dashboard server listening")
		if err := dashboardServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("dashboard server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dataServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("data server shutdown")
	}
	if err := dashboardServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("dashboard server shutdown")
	}
	log.Info().Msg("stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.App.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

// thresholdTable converts the configured rules into the classifier's table.
func thresholdTable(cfg *config.Config) risk.Table {
	table := make(risk.Table, len(cfg.Thresholds))
	for assetID, metrics := range cfg.Thresholds {
		table[assetID] = make(map[string]risk.Threshold, len(metrics))
		for metric, rule := range metrics {
			table[assetID][metric] = risk.Threshold{Warn: rule.Warn, Crit: rule.Crit}
		}
	}
	return table
}

// seed provisions the configured sites and crew roster.
func seed(cfg *config.Config, crews *crew.Service, sites *site.Registry, log zerolog.Logger) {
	for _, s := range cfg.Sites {
		err := sites.Add(model.Site{
			ID:      s.ID,
			Name:    s.Name,
			Lat:     s.Lat,
			Lon:     s.Lon,
			Address: s.Address,
		})
		if err != nil {
			log.Warn().Err(err).Str("site", s.ID).Msg("skipping site seed")
		}
	}
	for _, c := range cfg.Crews {
		status := c.Status
		if status == "" {
			status = "off_duty"
		}
		_, err := crews.Create(model.CrewCreate{ID: c.ID, Name: c.Name, Role: c.Role, Status: status})
		if err != nil {
			log.Warn().Err(err).Str("crew", c.ID).Msg("skipping crew seed")
		}
	}
}
