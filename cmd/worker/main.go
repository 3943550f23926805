package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/common/logger"
	"lattice.dev/lattice/common/otel"
	"lattice.dev/lattice/core/config"
	"lattice.dev/lattice/core/db"
	"lattice.dev/lattice/internal/journal"
	"lattice.dev/lattice/internal/stream"
	"lattice.dev/lattice/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "lattice delivery worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Stream.Group,
		"consumer_name", cfg.Stream.Consumer)

	// Different snowflake node ID than the server
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
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

	consumer, err := stream.NewConsumer(redisClient, stream.ConsumerConfig{
		Stream:       cfg.Stream.Stream,
		Group:        cfg.Stream.Group,
		Consumer:     cfg.Stream.Consumer,
		DLQStream:    cfg.Stream.DLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Delivery.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	subStore := journal.NewSubscriptionStore(database.Pool())
	deliveryStore := journal.NewDeliveryStore(database.Pool())
	sender := worker.NewWebhookSender(cfg.Delivery.Timeout)

	w := worker.New(consumer, subStore, deliveryStore, sender)

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
██╗      █████╗ ████████╗████████╗██╗ ██████╗███████╗    ██╗    ██╗██╗  ██╗██████╗
██║     ██╔══██╗╚══██╔══╝╚══██╔══╝██║██╔════╝██╔════╝    ██║    ██║██║ ██╔╝██╔══██╗
██║     ███████║   ██║      ██║   ██║██║     █████╗      ██║ █╗ ██║█████╔╝ ██████╔╝
██║     ██╔══██║   ██║      ██║   ██║██║     ██╔══╝      ██║███╗██║██╔═██╗ ██╔══██╗
███████╗██║  ██║   ██║      ██║   ██║╚██████╗███████╗    ╚███╔███╔╝██║  ██╗██║  ██║
╚══════╝╚═╝  ╚═╝   ╚═╝      ╚═╝   ╚═╝ ╚═════╝╚══════╝     ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝  ╚═╝
`
