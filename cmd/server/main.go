package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/org/exposuregraph/internal/api"
	"github.com/org/exposuregraph/internal/collector"
	"github.com/org/exposuregraph/internal/graph"
	"github.com/org/exposuregraph/internal/sink"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type awsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Region        string `yaml:"region"`
	AssumeRoleARN string `yaml:"assume_role_arn"`
	SessionName   string `yaml:"session_name"`
}

type sinkConfig struct {
	Type  string `yaml:"type"` // "log" or "dynamodb"
	Table string `yaml:"table"`
}

type config struct {
	ListenAddr      string     `yaml:"listen_addr"`
	TLSCertFile     string     `yaml:"tls_cert"`
	TLSKeyFile      string     `yaml:"tls_key"`
	GraphBackend    string     `yaml:"graph_backend"` // "postgres" or "memory"
	DBUrl           string     `yaml:"db_url"`
	MigrationsDir   string     `yaml:"migrations_dir"`
	LogLevel        string     `yaml:"log_level"`
	LookbackDays    int        `yaml:"lookback_days"`
	ContinueOnError bool       `yaml:"continue_on_error"`
	AWS             awsConfig  `yaml:"aws"`
	Sink            sinkConfig `yaml:"sink"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("EXPOSUREGRAPH_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:    ":8280",
		GraphBackend:  "postgres",
		MigrationsDir: "migrations",
		LogLevel:      "info",
		LookbackDays:  90,
		AWS:           awsConfig{SessionName: "ExposureGraphCollector"},
		Sink:          sinkConfig{Type: "log", Table: "IdentityExposureMetrics"},
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("EXPOSUREGRAPH_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	// Open the graph store
	var store graph.Store
	switch cfg.GraphBackend {
	case "memory":
		store = graph.NewMemoryStore()
		log.Warn().Msg("using in-memory graph store, data is lost on restart")
	case "postgres":
		if cfg.DBUrl == "" {
			log.Fatal().Msg("db_url must be configured (or DATABASE_URL env var)")
		}
		pg, err := graph.NewPostgresStore(ctx, cfg.DBUrl)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := graph.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		log.Info().Msg("migrations applied")
		store = pg
	default:
		log.Fatal().Str("backend", cfg.GraphBackend).Msg("unknown graph backend")
	}
	defer store.Close()

	// AWS is optional: without it the collect endpoints return 503 and
	// the graph is fed through the ingest API instead.
	var awsCfg aws.Config
	var accountID string
	if cfg.AWS.Enabled {
		awsCfg, err = collector.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load aws config")
		}
		if cfg.AWS.AssumeRoleARN != "" {
			awsCfg = collector.AssumeRole(awsCfg, cfg.AWS.AssumeRoleARN, cfg.AWS.SessionName)
		}
		accountID, err = collector.CallerAccount(ctx, awsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to resolve target account")
		}
		log.Info().Str("account", accountID).Msg("aws collectors configured")
	}

	// Metrics sink
	var snk sink.Sink
	switch cfg.Sink.Type {
	case "dynamodb":
		if !cfg.AWS.Enabled {
			log.Fatal().Msg("dynamodb sink requires aws.enabled")
		}
		snk = sink.NewDynamoSink(awsCfg, cfg.Sink.Table)
		log.Info().Str("table", cfg.Sink.Table).Msg("dynamodb sink configured")
	case "log":
		snk = sink.NewLogSink()
	default:
		log.Fatal().Str("type", cfg.Sink.Type).Msg("unknown sink type")
	}
	defer snk.Close()

	// Create server
	srv := api.NewServer(store, snk, api.Config{
		ListenAddr:      cfg.ListenAddr,
		TLSCertFile:     cfg.TLSCertFile,
		TLSKeyFile:      cfg.TLSKeyFile,
		LookbackDays:    cfg.LookbackDays,
		ContinueOnError: cfg.ContinueOnError,
	})
	if cfg.AWS.Enabled {
		srv.SetCollectors(
			collector.NewIAMCollector(awsCfg, accountID),
			collector.NewUsageCollector(awsCfg),
		)
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
