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

	"autoreply.app/relay/common/id"
	"autoreply.app/relay/common/llm"
	"autoreply.app/relay/common/logger"
	"autoreply.app/relay/common/otel"
	"autoreply.app/relay/core/config"
	"autoreply.app/relay/core/db"
	"autoreply.app/relay/internal/brain"
	"autoreply.app/relay/internal/channel/whatsapp"
	"autoreply.app/relay/internal/lock"
	"autoreply.app/relay/internal/notify"
	"autoreply.app/relay/internal/queue"
	"autoreply.app/relay/internal/store"
	"autoreply.app/relay/internal/worker"
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

	slog.InfoContext(ctx, "relay worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer,
		"llm_provider", cfg.LLM.Provider)

	// Different node ID than the server so message and run IDs never collide
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

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
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
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	orchestrator, err := buildOrchestrator(ctx, cfg, database, redisClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    10,
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, orchestrator, worker.Config{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	})

	// Reclaim window must outlive the conversation lock so a slow but live run is not stolen
	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   cfg.Pipeline.LockTTL + time.Minute,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.Handle)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick)
	reclaimer.Stop()

	// Stop worker (may be mid-run; the checkpoint lets the next delivery resume)
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

func buildOrchestrator(ctx context.Context, cfg config.Config, database *db.DB, redisClient *redis.Client) (*brain.Orchestrator, error) {
	llmCfg := llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
		RPS:      cfg.LLM.RPS,
		Burst:    cfg.LLM.Burst,
	}

	generator, err := llm.NewGenerator(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("creating llm generator: %w", err)
	}

	// Structured advice needs strict JSON schema output, which only the OpenAI client offers.
	// Without it the classifier runs on keywords alone.
	var advisor brain.Advisor
	if cfg.LLM.Provider == llm.ProviderOpenAI {
		client, err := llm.New(llmCfg)
		if err != nil {
			return nil, fmt.Errorf("creating llm client: %w", err)
		}
		advisor = brain.NewLLMAdvisor(client)
	} else {
		slog.InfoContext(ctx, "llm advisor disabled for provider", "provider", cfg.LLM.Provider)
	}

	wa := whatsapp.NewClient(whatsapp.Config{
		BaseURL:     cfg.WhatsApp.GraphBaseURL,
		AccessToken: cfg.WhatsApp.AccessToken,
	})

	var mailer notify.Mailer
	if cfg.Email.Enabled() {
		resendMailer, err := notify.NewResendMailer(notify.ResendConfig{
			APIKey: cfg.Email.ResendAPIKey,
			From:   cfg.Email.From,
		})
		if err != nil {
			return nil, fmt.Errorf("creating resend mailer: %w", err)
		}
		mailer = resendMailer
	} else {
		slog.InfoContext(ctx, "email notifications disabled (no RESEND_API_KEY)")
	}

	notifier := notify.New(mailer, wa, notify.Config{
		SenderChannelID: cfg.WhatsApp.NotifyChannelID,
		RPS:             cfg.Email.RPS,
	})

	stores := store.FromDB(database)

	return brain.NewOrchestrator(
		brain.OrchestratorConfig{HistoryLimit: cfg.Pipeline.HistoryLimit},
		brain.Dependencies{
			Merchants:   stores.Merchants(),
			Configs:     stores.AIConfigs(),
			Profiles:    stores.Profiles(),
			Messages:    stores.Messages(),
			Ledger:      stores.Ledger(),
			Deliverer:   wa,
			Checkpoints: stores.Runs(),
			Locker:      lock.NewRedisKeyLocker(redisClient, lock.Config{TTL: cfg.Pipeline.LockTTL}),

			Classifier: brain.NewClassifier(advisor),
			Responder:  brain.NewResponder(generator),
			Orders:     brain.NewOrderExtractor(generator, notifier),
			Escalation: brain.NewEscalationHandler(),
			Billing: brain.NewBillingCalculator(brain.BillingConfig{
				DefaultBaseCost: cfg.Billing.DefaultBaseCost,
				FallbackCharge:  cfg.Billing.FallbackCharge,
				MinCharge:       cfg.Billing.MinCharge,
				MaxCharge:       cfg.Billing.MaxCharge,
			}),
		},
	), nil
}

const banner = `
██████╗ ███████╗██╗      █████╗ ██╗   ██╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗ 
██╔══██╗██╔════╝██║     ██╔══██╗╚██╗ ██╔╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██████╔╝█████╗  ██║     ███████║ ╚████╔╝     ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██╔══██╗██╔══╝  ██║     ██╔══██║  ╚██╔╝      ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║  ██║███████╗███████╗██║  ██║   ██║       ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝   ╚═╝        ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
