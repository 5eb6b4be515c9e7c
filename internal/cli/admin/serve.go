package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/leadbot/internal/api/handlers"
	"github.com/cloo-solutions/leadbot/internal/api/middleware"
	"github.com/cloo-solutions/leadbot/internal/cache"
	"github.com/cloo-solutions/leadbot/internal/config"
	"github.com/cloo-solutions/leadbot/internal/jobs"
	"github.com/cloo-solutions/leadbot/internal/openai"
	"github.com/cloo-solutions/leadbot/internal/repository"
	"github.com/cloo-solutions/leadbot/internal/server"
	"github.com/cloo-solutions/leadbot/internal/service"
	"github.com/cloo-solutions/leadbot/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the leadbot chat API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides LEADBOT_PORT)")
	addMigrateFlags(cmd)

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate(),
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
	} else {
		defer shutdownTelemetry()
	}

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	pool, err := connect(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	// An unusable index is not fatal: chat keeps working without retrieval
	idx, err := openIndex(ctx, cfg, pool)
	if idx == nil {
		return err
	}

	replyCache, janitor, err := newReplyCache(ctx, cfg)
	if err != nil {
		return err
	}
	if janitor != nil {
		go janitor.Start(ctx)
	}

	completion := newCompletionClient(cfg)

	gateway := service.NewGateway(completion, replyCache, service.GatewayConfig{
		Timeout:  cfg.CompletionTimeout,
		CacheTTL: cfg.CacheTTL,
	})
	extractor := service.NewLeadExtractor(completion, cfg.CompletionTimeout)

	conversationSvc := service.NewConversationService(
		repository.NewSessionRepository(pool),
		repository.NewMessageRepository(pool),
		repository.NewLeadRepository(pool),
		repository.NewTxRunner(pool),
		idx,
		gateway,
		extractor,
	)

	router := server.NewRouter(server.RouterConfig{
		ConversationHandler: handlers.NewConversationHandler(conversationSvc),
		IndexStats:          idx,
		AdminToken:          cfg.AdminToken,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.ChatRateLimit,
			Burst:             cfg.ChatRateBurst,
		},
	})
	if cfg.AdminToken == "" {
		log.Println("warning: LEADBOT_ADMIN_TOKEN not set, /api/leads is unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if janitor != nil {
		janitor.Stop()
	}

	log.Println("server exited")
	return nil
}

// newReplyCache picks Redis when configured, otherwise an in-process cache
// whose expired entries are swept by the returned worker.
func newReplyCache(ctx context.Context, cfg *config.Config) (cache.Cache, *jobs.Worker, error) {
	if cfg.HasRedis() {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Println("cache: using redis")
		return cache.NewRedisCache(client), nil, nil
	}

	memory := cache.NewMemoryCache()
	janitorInterval := cfg.CacheTTL
	if janitorInterval < time.Second {
		janitorInterval = time.Second
	}
	return memory, jobs.NewWorker("cache-janitor", memory, janitorInterval), nil
}

// newCompletionClient returns nil when no API key is configured, which makes
// the gateway answer every prompt with the unavailable message.
func newCompletionClient(cfg *config.Config) service.CompletionClient {
	if !cfg.HasOpenAI() {
		log.Println("completion: LEADBOT_OPENAI_API_KEY not set, every reply will be the unavailable message")
		return nil
	}
	log.Printf("completion: using model %s", cfg.OpenAIModel)
	return openai.NewClientWithConfig(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	})
}
