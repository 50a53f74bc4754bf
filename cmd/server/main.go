package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"

	grpcAdapter "github.com/frc5024/portguard/internal/adapters/grpc"
	"github.com/frc5024/portguard/internal/adapters/memory"
	"github.com/frc5024/portguard/internal/adapters/mock"
	"github.com/frc5024/portguard/internal/adapters/redis"
	"github.com/frc5024/portguard/internal/adapters/sqlite"
	"github.com/frc5024/portguard/internal/config"
	"github.com/frc5024/portguard/internal/domain"
	"github.com/frc5024/portguard/internal/ports"
	"github.com/frc5024/portguard/pkg/tlsconfig"
)

// holderSelf is the holder recorded for ports the server claims for itself
const holderSelf = "portguard"

func main() {
	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Read configuration from environment
	cfg := loadConfig()
	zerolog.SetGlobalLevel(cfg.LogLevel)

	log.Info().Msg("starting port service")

	// Initialize registry and policies
	registry := domain.NewPortRegistry()
	defer registry.Close()

	var reserved []domain.Port
	if cfg.PolicyFile != "" {
		file, err := config.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			log.Fatal().Err(err).Str("policy_file", cfg.PolicyFile).Msg("failed to load policy file")
		}
		policies, err := file.BuildPolicies()
		if err != nil {
			log.Fatal().Err(err).Str("policy_file", cfg.PolicyFile).Msg("invalid policy file")
		}
		for _, p := range policies {
			if err := registry.RegisterPolicy(p); err != nil {
				log.Fatal().Err(err).Msg("failed to register policy")
			}
			log.Info().Str("policy", p.Name()).Str("rule", p.String()).Msg("registered policy")
		}
		if reserved, err = file.ReservedPorts(); err != nil {
			log.Fatal().Err(err).Str("policy_file", cfg.PolicyFile).Msg("invalid reserve list")
		}
	} else {
		log.Warn().Msg("POLICY_FILE not set; every port is admissible")
	}

	// Initialize journal
	var journal domain.EventRepository
	switch cfg.RepoType {
	case "sqlite":
		r, err := sqlite.NewEventRepository(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open SQLite database")
		}
		defer r.Close()
		journal = r
		log.Info().Str("db_path", cfg.DBPath).Msg("initialized SQLite journal")
	default:
		journal = memory.NewEventRepository()
		log.Info().Msg("initialized in-memory journal")
	}

	// Initialize stats store
	var stats domain.StatsStore
	switch cfg.StatsType {
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("redis_addr", cfg.RedisAddr).Msg("redis stats ping failed")
		}

		stats = redis.NewStatsStore(rdb,
			redis.WithTTL(cfg.StatsTTL),
			redis.WithTrackPorts(true),
		)
		log.Info().Str("redis_addr", cfg.RedisAddr).Msg("initialized Redis stats store")
	case "none":
		log.Info().Msg("admission stats disabled")
	default:
		stats = memory.NewStatsStore()
		log.Info().Msg("initialized in-memory stats store")
	}

	allocator := ports.NewAllocator(registry, journal, stats)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := allocator.Reserve(ctx, holderSelf, reserved...); err != nil {
		log.Fatal().Err(err).Msg("failed to reserve ports")
	}

	// The service port goes through the same admission as everyone else's
	listenPort, err := allocator.Allocate(ctx, cfg.Port, holderSelf)
	if err != nil {
		log.Fatal().Err(err).Msg("service port refused")
	}

	// Configure TLS if certificates are provided
	var serverOpts []grpc.ServerOption
	if cfg.TLS.Enabled() {
		tlsCfg, err := tlsconfig.LoadServerTLS(cfg.TLS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load TLS config")
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
		log.Info().Msg("mTLS enabled")
	} else {
		log.Warn().Msg("TLS_CERT not set, starting without TLS (dev mode only)")
	}

	// Create gRPC server
	grpcServer := grpc.NewServer(serverOpts...)
	grpcAdapter.RegisterPortServiceServer(grpcServer, grpcAdapter.NewPortServiceHandler(allocator))

	// Enable gRPC reflection for grpcurl testing. The service descriptor is
	// registered by the grpc adapter, so describe works as well as list.
	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", listenPort.Number()))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}

	log.Info().Str("port", listenPort.Key()).Msg("gRPC server listening")

	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("failed to serve")
		}
	}()

	// Start background monitor
	monitor := ports.NewMonitor(allocator, cfg.MonitorInterval, cfg.Retention)
	switch cfg.SensorType {
	case "hardware":
		log.Fatal().Msg("hardware sensors not yet implemented; set SENSOR_TYPE=mock")
	default:
		monitor.AddGyroscope("navx", mock.NewFakeGyro(0, 0.05, 0.5))
		monitor.AddBinarySensor("intake", mock.NewLimitSwitch(true))
		monitor.AddBinarySensor("indexer", mock.NewLineBreak(false))
		log.Info().Msg("initialized mock sensors")
	}
	go monitor.Start(ctx)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	cancel() // Stop monitor
	grpcServer.GracefulStop()

	if err := allocator.Release(context.Background(), listenPort, holderSelf); err != nil {
		log.Error().Err(err).Msg("failed to release service port")
	}

	log.Info().Msg("server stopped")
}

// Config holds application configuration
type Config struct {
	Port            domain.Port
	PolicyFile      string        // YAML policies and reserved ports
	RepoType        string        // "memory" | "sqlite"
	DBPath          string        // SQLite database file path (used when RepoType=sqlite)
	StatsType       string        // "memory" | "redis" | "none"
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	StatsTTL        time.Duration // lifetime of per-minute Redis buckets
	SensorType      string // "mock" | "hardware"
	MonitorInterval time.Duration
	Retention       time.Duration
	LogLevel        zerolog.Level
	TLS             tlsconfig.Files
}

// loadConfig reads configuration from environment variables
func loadConfig() Config {
	number := 5800
	if s := os.Getenv("PORT"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			log.Fatal().Err(err).Str("port", s).Msg("invalid PORT")
		}
		number = n
	}

	protocol := domain.ProtocolTCP
	if s := os.Getenv("PROTOCOL"); s != "" {
		p, err := domain.ParseProtocol(s)
		if err != nil || p == domain.ProtocolUDP {
			log.Fatal().Str("protocol", s).Msg("gRPC needs PROTOCOL=tcp")
		}
		protocol = p
	}

	port, err := domain.NewPort(number, protocol)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid service port")
	}

	monitorInterval := positiveDuration("MONITOR_INTERVAL", ports.DefaultMonitorInterval)
	retention := positiveDuration("RETENTION", 7*24*time.Hour)
	statsTTL := positiveDuration("STATS_TTL", 24*time.Hour)

	redisDB := 0
	if s := os.Getenv("REDIS_DB"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			redisDB = n
		}
	}

	level := zerolog.InfoLevel
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if l, err := zerolog.ParseLevel(s); err == nil {
			level = l
		}
	}

	return Config{
		Port:            port,
		PolicyFile:      os.Getenv("POLICY_FILE"),
		RepoType:        getenv("REPO_TYPE", "memory"),
		DBPath:          getenv("DB_PATH", "./portguard.db"),
		StatsType:       getenv("STATS_TYPE", "memory"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		SensorType:      getenv("SENSOR_TYPE", "mock"),
		StatsTTL:        statsTTL,
		MonitorInterval: monitorInterval,
		Retention:       retention,
		LogLevel:        level,
		TLS: tlsconfig.Files{
			Cert: os.Getenv("TLS_CERT"),
			Key:  os.Getenv("TLS_KEY"),
			CA:   os.Getenv("TLS_CA"),
		},
	}
}

// positiveDuration reads a duration env var that must be greater than zero
func positiveDuration(key string, fallback time.Duration) time.Duration {
	d, err := parsePositiveDuration(os.Getenv(key), fallback)
	if err != nil {
		log.Fatal().Err(err).Str(strings.ToLower(key), os.Getenv(key)).Msgf("invalid %s", key)
	}
	return d
}

// parsePositiveDuration returns fallback for an empty value. Zero and
// negative durations are errors: they would panic time.NewTicker.
func parsePositiveDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
