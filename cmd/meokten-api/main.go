package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/meokten/meokten/internal/logger"
	"github.com/meokten/meokten/internal/metrics"
	"github.com/meokten/meokten/internal/server"
	"github.com/meokten/meokten/internal/store"
	"github.com/meokten/meokten/pkg/agent"
	"github.com/meokten/meokten/pkg/sqltool"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultDBPath    = "meokten.db"
	defaultModel     = string(anthropic.ModelClaude3_5Haiku20241022)
	defaultMaxTokens = 4096
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var (
		showVersion = flag.Bool("version", false, "print version and exit")
		verbose     = flag.BoolP("verbose", "v", false, "enable debug logging")
		dbPath      = flag.String("db", getenv("MEOKTEN_DB_PATH", defaultDBPath), "path to the SQLite database")
		model       = flag.String("model", getenv("MEOKTEN_MODEL", defaultModel), "Anthropic model to use")
		maxTokens   = flag.Int64("max-tokens", defaultMaxTokens, "max output tokens per LLM call")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := logger.New(*verbose)

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return errors.New("ANTHROPIC_API_KEY is not set")
	}

	st, err := store.New(&store.Config{Logger: log, Path: *dbPath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	a, err := agent.New(&agent.Config{
		Logger:   log,
		LLM:      agent.NewAnthropicLLMClient(anthropic.Model(*model), *maxTokens),
		Executor: &instrumentedExecutor{gateway: sqltool.NewGateway(st)},
		Store:    st,
	})
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	cfg := server.LoadFromEnv(log)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(cfg, a, st).Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("meokten API listening", "addr", cfg.Addr, "db", *dbPath, "model", *model)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// instrumentedExecutor counts execution outcomes around the gateway.
type instrumentedExecutor struct {
	gateway *sqltool.Gateway
}

func (e *instrumentedExecutor) Execute(ctx context.Context, sql string) sqltool.Outcome {
	out := e.gateway.Execute(ctx, sql)
	metrics.QueryExecutionsTotal.WithLabelValues(out.Status.String()).Inc()
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
