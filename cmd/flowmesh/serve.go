package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/flowmesh-ai/flowmesh/internal/api"
	"github.com/flowmesh-ai/flowmesh/internal/chatflow"
	"github.com/flowmesh-ai/flowmesh/internal/config"
	"github.com/flowmesh-ai/flowmesh/internal/credentials"
	"github.com/flowmesh-ai/flowmesh/internal/engine"
	"github.com/flowmesh-ai/flowmesh/internal/facts"
	"github.com/flowmesh-ai/flowmesh/internal/llm"
	"github.com/flowmesh-ai/flowmesh/internal/logging"
	"github.com/flowmesh-ai/flowmesh/internal/mcp"
	"github.com/flowmesh-ai/flowmesh/internal/repository"
	"github.com/flowmesh-ai/flowmesh/internal/scheduler"
	tlsutil "github.com/flowmesh-ai/flowmesh/internal/tls"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workflow service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("starting flowmesh", "addr", cfg.Server.Addr, "tls", cfg.TLS.Enable)

	pool, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	logger.Info("database connected")

	workflows := repository.NewPostgresWorkflowStore(pool)
	runs := repository.NewPostgresRunStore(pool)
	factStore := repository.NewPostgresFactStore(pool)

	var llmOpts []llm.OpenAIOption
	if cfg.LLM.APIKey != "" {
		llmOpts = append(llmOpts, llm.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.Model != "" {
		llmOpts = append(llmOpts, llm.WithDefaultModel(cfg.LLM.Model))
	}
	model := llm.NewOpenAI(llmOpts...)

	registry := engine.NewRegistry()
	registry.RegisterBuiltins(engine.BuiltinDeps{
		Credentials:  credentials.NewEnvStore(),
		Model:        model,
		HTTPClient:   &http.Client{},
		HTTPTimeout:  time.Duration(cfg.Engine.HTTPTimeoutSeconds * float64(time.Second)),
		ModelTimeout: time.Duration(cfg.Engine.ModelTimeoutSeconds * float64(time.Second)),
	})

	eng, err := engine.New(engine.Options{
		Workflows: workflows,
		Runs:      runs,
		Registry:  registry,
		Logger:    logger.With("component", "engine"),
		MaxSteps:  cfg.Engine.MaxSteps,
		MaxDepth:  cfg.Engine.MaxDepth,
	})
	if err != nil {
		return err
	}

	var extractor chatflow.FactExtractor
	if cfg.Facts.Enabled {
		extractor = facts.NewLLMExtractor(model, factStore, cfg.Facts.Model, logger.With("component", "facts"))
	}
	chat := chatflow.NewAdapter(eng, extractor, logger.With("component", "chatflow"))

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("flowmesh"))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	apiServer := api.NewServer(workflows, runs, eng, chat, logger.With("component", "api"))
	apiServer.RegisterRoutes(e)
	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(eng, workflows, runs)
	mcpHandlers := http.NewServeMux()
	mcp.MountHTTPHandlers(mcpHandlers, mcpServer.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpHandlers))
	logger.Info("MCP protocol handlers mounted")

	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	if cfg.Scheduler.Enabled {
		driver := scheduler.NewDriver(workflows, eng, logger.With("component", "scheduler"))
		go runScheduler(schedulerCtx, driver, logger)
		logger.Info("scheduler started")
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE responses stream indefinitely
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- listenAndServe(server, cfg, logger)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return err
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
		stopScheduler()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("server close error", "error", err)
			}
		}
		logger.Info("server stopped gracefully")
	}
	return nil
}

func listenAndServe(server *http.Server, cfg *config.Config, logger *logging.Logger) error {
	if !cfg.TLS.Enable {
		return server.ListenAndServe()
	}
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		logger.Error("TLS enabled but cert/key file not provided; serving plain HTTP")
		return server.ListenAndServe()
	}
	if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
		if err := tlsutil.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
			logger.Error("failed to generate self-signed cert", "error", err)
		}
	}
	return server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
}

// runScheduler ticks the driver once per wall-clock minute, aligned to the
// minute boundary so cron matching sees each minute exactly once.
func runScheduler(ctx context.Context, driver *scheduler.Driver, logger *logging.Logger) {
	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
		if _, err := driver.Tick(ctx, next); err != nil {
			logger.Error("scheduler tick failed", "error", err)
		}
	}
}
