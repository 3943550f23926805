package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/common/logger"
	"lattice.dev/lattice/common/otel"
	"lattice.dev/lattice/core/config"
	"lattice.dev/lattice/core/db"
	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/graph/arango"
	"lattice.dev/lattice/graph/memory"
	"lattice.dev/lattice/graph/neo4j"
	"lattice.dev/lattice/graph/sqlite"
	"lattice.dev/lattice/internal/http/middleware"
	httprouter "lattice.dev/lattice/internal/http/router"
	"lattice.dev/lattice/internal/journal"
	"lattice.dev/lattice/internal/metrics"
	"lattice.dev/lattice/internal/schema"
	"lattice.dev/lattice/internal/service"
	"lattice.dev/lattice/internal/stream"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "lattice starting", "env", cfg.Env, "engine", cfg.Engine.Name)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	relSchema, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load relationship schema", "error", err)
		os.Exit(1)
	}
	if cfg.Schema.Path != "" {
		slog.InfoContext(ctx, "relationship schema loaded", "path", cfg.Schema.Path, "types", len(relSchema.Types()))
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Stream.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Stream.Stream)

	eng, err := openEngine(ctx, cfg.Engine, relSchema.Types())
	if err != nil {
		slog.ErrorContext(ctx, "failed to open graph engine", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "graph engine ready", "engine", cfg.Engine.Name)

	g := graph.New(eng, eng)
	for _, t := range relSchema.Types() {
		if _, err := g.Types().Intern(t); err != nil {
			slog.ErrorContext(ctx, "invalid relationship type in schema", "rel_type", t, "error", err)
			os.Exit(1)
		}
	}

	eventStore := journal.NewEventStore(database.Pool())
	subStore := journal.NewSubscriptionStore(database.Pool())
	deliveryStore := journal.NewDeliveryStore(database.Pool())

	// Listener order matters: journal first so an unpersistable event
	// aborts the mutation before it reaches the stream.
	g.Events().Subscribe("", journal.Listener(eventStore))
	g.Events().Subscribe("", stream.Listener(stream.NewRedisPublisher(redisClient, cfg.Stream.Stream)))
	g.Events().Subscribe("", func(ctx context.Context, ev graph.Event) error {
		metrics.EventsDispatched.WithLabelValues(string(ev.Kind)).Inc()
		return nil
	})

	services := service.NewServices(service.ServicesConfig{
		Graph:      g,
		Admin:      eng,
		Schema:     relSchema,
		EngineName: cfg.Engine.Name,

		Events:        eventStore,
		Subscriptions: subStore,
		Deliveries:    deliveryStore,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, g.Events())
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// engine is what every backend hands the graph layer: edge storage plus
// node resolution and administration.
type engine interface {
	graph.Engine
	graph.NodeSource
	graph.NodeAdmin
}

func openEngine(ctx context.Context, cfg config.EngineConfig, types []string) (engine, error) {
	switch cfg.Name {
	case "memory":
		return memory.New(), nil
	case "arango":
		eng, err := arango.New(ctx, arango.Config{
			URL:      cfg.Arango.URL,
			Username: cfg.Arango.Username,
			Password: cfg.Arango.Password,
			Database: cfg.Arango.Database,
			Types:    types,
		})
		if err != nil {
			return nil, err
		}
		if err := eng.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure arango schema: %w", err)
		}
		return eng, nil
	case "neo4j":
		return neo4j.New(ctx, neo4j.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
	case "sqlite":
		return sqlite.New(ctx, sqlite.Config{Path: cfg.SQLite.Path})
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Name)
	}
}

func setupRouter(cfg config.Config, services *service.Services, dispatcher *graph.Dispatcher) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, dispatcher)

	return router
}

const banner = `
██╗      █████╗ ████████╗████████╗██╗ ██████╗███████╗
██║     ██╔══██╗╚══██╔══╝╚══██╔══╝██║██╔════╝██╔════╝
██║     ███████║   ██║      ██║   ██║██║     █████╗
██║     ██╔══██║   ██║      ██║   ██║██║     ██╔══╝
███████╗██║  ██║   ██║      ██║   ██║╚██████╗███████╗
╚══════╝╚═╝  ╚═╝   ╚═╝      ╚═╝   ╚═╝ ╚═════╝╚══════╝
`
