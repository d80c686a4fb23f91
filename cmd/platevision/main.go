package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/Toru2004/PlateVision-BE/internal/analytics"
	"github.com/Toru2004/PlateVision-BE/internal/api"
	"github.com/Toru2004/PlateVision-BE/internal/circuitbreaker"
	"github.com/Toru2004/PlateVision-BE/internal/config"
	"github.com/Toru2004/PlateVision-BE/internal/dispatcher"
	"github.com/Toru2004/PlateVision-BE/internal/engine"
	"github.com/Toru2004/PlateVision-BE/internal/feed/redisfeed"
	"github.com/Toru2004/PlateVision-BE/internal/janitor"
	"github.com/Toru2004/PlateVision-BE/internal/metrics"
	"github.com/Toru2004/PlateVision-BE/internal/recipients"
	"github.com/Toru2004/PlateVision-BE/internal/store/postgres"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`platevision - parking expiration and alert notification engine

Usage:
  platevision <command>

Commands:
  serve      Start the notification engine
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  REDIS_ADDR                Redis address for the change feed (required)
  REDIS_PASSWORD            Redis password (optional)
  REDIS_DB                  Redis database number (default: "0")
  VEHICLE_CHANNEL           Vehicle change channel (default: "platevision:vehicles")
  DEADLINE_CHANNEL          Deadline change channel (default: "platevision:deadline")
  ACTIVE_SET_KEY            Active vehicle hash key (default: "platevision:active")
  FEED_BUFFER_SIZE          Change buffer per stream (default: "100")

  FIRESTORE_PROJECT_ID      GCP project holding registrations (required)
  REGISTRATION_COLLECTION   Registration collection (default: "thongtindangky")

  FCM_SERVER_KEY            FCM legacy server key (required)
  FCM_ENDPOINT              FCM send endpoint override (optional)
  CIRCUIT_BREAKER_THRESHOLD Push failures before the breaker opens, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Breaker open duration (default: "2m")

  TICK_INTERVAL             Deadline evaluation cadence (default: "1m")
  TZ_OFFSET_HOURS           Fixed civil-zone offset (default: "7")

  DATABASE_URL              PostgreSQL connection string for delivery history (optional)
  DB_MAX_OPEN_CONNS         Max open database connections (default: "10")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  JANITOR_ENABLED           Enable history retention purge (default: "false")
  JANITOR_SCHEDULE          Purge cron schedule (default: "0 3 * * *")
  JANITOR_RETENTION         History retention window (default: "720h")
  JANITOR_BATCH_SIZE        Max rows per purge batch (default: "500")

  ANALYTICS_ENABLED         Enable Redis event counters (default: "false")
  ANALYTICS_RETENTION       Counter TTL (default: "168h")

  HTTP_ADDR                 HTTP server address (default: ":8080")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	ctx := context.Background()

	// Connect to Redis (change feed, optionally analytics)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
		return exitRuntimeError
	}

	source := redisfeed.New(redisClient, redisfeed.Config{
		VehicleChannel:  cfg.VehicleChannel,
		DeadlineChannel: cfg.DeadlineChannel,
		ActiveSetKey:    cfg.ActiveSetKey,
		Buffer:          cfg.FeedBufferSize,
	})
	if err := source.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start change feed: %v\n", err)
		return exitRuntimeError
	}

	// Connect to Firestore (recipient registrations)
	fsClient, err := firestore.NewClient(ctx, cfg.FirestoreProjectID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create firestore client: %v\n", err)
		return exitRuntimeError
	}
	defer fsClient.Close()

	resolver := recipients.NewFirestoreResolver(fsClient, cfg.RegistrationCollection)

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("platevision: metrics enabled (path=%s)", cfg.MetricsPath)
	} else {
		log.Println("platevision: METRICS_ENABLED not set; metrics disabled")
	}

	// Push sender with optional circuit breaker
	sender := dispatcher.NewFCMSender(cfg.FCMServerKey)
	if cfg.FCMEndpoint != "" {
		sender = sender.WithEndpoint(cfg.FCMEndpoint)
	}
	if cfg.CircuitBreakerThreshold > 0 {
		sender = sender.WithBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown))
		log.Printf("platevision: circuit breaker enabled (threshold=%d, cooldown=%s)",
			cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)
	}
	if metricsSink != nil {
		sender = sender.WithMetrics(metricsSink)
	}

	eng := engine.New(engine.Config{
		Location:     cfg.Location(),
		DeadlineTick: cfg.TickInterval,
	}, source, resolver, sender)
	if metricsSink != nil {
		eng = eng.WithMetrics(metricsSink)
	}

	apiHandler := api.NewHandler(eng).
		WithReadyCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})

	// Optional delivery history in PostgreSQL
	var db *sql.DB
	var janitorWg sync.WaitGroup
	var cancelJanitor context.CancelFunc

	if cfg.HistoryEnabled() {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			return exitRuntimeError
		}
		defer db.Close()

		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)

		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			return exitRuntimeError
		}

		historyStore := postgres.New(db)
		if err := historyStore.EnsureSchema(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
			return exitRuntimeError
		}

		eng = eng.WithHistory(historyStore)
		apiHandler = apiHandler.
			WithHistory(historyStore).
			WithReadyCheck("postgres", db.PingContext)
		log.Println("platevision: delivery history enabled")

		if cfg.JanitorEnabled {
			jan, err := janitor.New(janitor.Config{
				Schedule:  cfg.JanitorSchedule,
				Retention: cfg.JanitorRetention,
				BatchSize: cfg.JanitorBatchSize,
			}, historyStore)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to create janitor: %v\n", err)
				return exitInvalidConfig
			}

			var janitorCtx context.Context
			janitorCtx, cancelJanitor = context.WithCancel(context.Background())
			defer cancelJanitor()
			janitorWg.Add(1)
			go func() {
				defer janitorWg.Done()
				jan.Run(janitorCtx)
			}()
		} else {
			log.Println("platevision: JANITOR_ENABLED not set; retention purge disabled")
		}
	} else {
		log.Println("platevision: DATABASE_URL not set; delivery history disabled")
	}

	// Optional Redis event counters
	if cfg.AnalyticsEnabled {
		eng = eng.WithAnalytics(analytics.NewRedisSink(redisClient).WithRetention(cfg.AnalyticsRetention))
		log.Println("platevision: analytics enabled")
	}

	mux := http.NewServeMux()
	if cfg.MetricsEnabled {
		mux.Handle(cfg.MetricsPath, promhttp.Handler())
	}
	mux.Handle("/", apiHandler)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}
	go func() {
		log.Printf("platevision: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("platevision: http server error: %v", err)
		}
	}()

	if err := eng.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start engine: %v\n", err)
		return exitRuntimeError
	}

	log.Printf("platevision: started (tick=%s, tz=UTC%+d, http=%s)",
		cfg.TickInterval, cfg.TZOffsetHours, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("platevision: received signal %v, shutting down", received)

	// Phase 1: Close the change feed (no new changes delivered)
	log.Println("platevision: closing change feed...")
	if err := source.Close(); err != nil {
		log.Printf("platevision: change feed close error: %v", err)
	}

	// Phase 2: Stop the engine (deadline timer cancelled, loops drained)
	log.Println("platevision: stopping engine...")
	eng.Stop()

	// Phase 3: Stop the janitor
	if cancelJanitor != nil {
		log.Println("platevision: stopping janitor...")
		cancelJanitor()
		janitorWg.Wait()
	}

	// Phase 4: Stop HTTP server with graceful shutdown
	log.Println("platevision: stopping http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("platevision: http server shutdown error: %v", err)
	}

	log.Println("platevision: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("platevision version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
