package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/meokten/meokten/internal/logger"
	"github.com/meokten/meokten/internal/store"
	"github.com/meokten/meokten/pkg/agent"
	"github.com/meokten/meokten/pkg/sqltool"
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
		verbose   = flag.BoolP("verbose", "v", false, "enable debug logging")
		dbPath    = flag.String("db", "meokten.db", "path to the SQLite database")
		model     = flag.String("model", string(anthropic.ModelClaude3_5Haiku20241022), "Anthropic model to use")
		maxTokens = flag.Int64("max-tokens", 4096, "max output tokens per LLM call")
		asJSON    = flag.Bool("json", false, "print the full result as JSON")
	)
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		return errors.New("usage: meokten-cli [flags] <question>")
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return errors.New("ANTHROPIC_API_KEY is not set")
	}

	log := logger.New(*verbose)

	st, err := store.New(&store.Config{Logger: log, Path: *dbPath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	a, err := agent.New(&agent.Config{
		Logger:   log,
		LLM:      agent.NewAnthropicLLMClient(anthropic.Model(*model), *maxTokens),
		Executor: sqltool.NewGateway(st),
		Store:    st,
	})
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := a.Run(ctx, question)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(res.Answer)
	for _, info := range res.Infos {
		fmt.Printf("\n- %s (%s)\n", info.Name, info.Subway)
		if info.Address != "" {
			fmt.Printf("  주소: %s\n", info.Address)
		}
		if info.Menu != "" {
			fmt.Printf("  메뉴: %s\n", info.Menu)
		}
		if info.Review != "" {
			fmt.Printf("  리뷰: %s\n", info.Review)
		}
	}
	return nil
}
