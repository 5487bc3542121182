// Package agent implements the conversational SQL agent for the restaurant
// dataset: a staged state machine that turns a natural-language question into
// a validated SQL query, executes it, and synthesizes a structured answer.
package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/meokten/meokten/pkg/sqltool"
)

// Kind tags a conversation message.
type Kind int

const (
	// KindQuestion is the user's natural-language question.
	KindQuestion Kind = iota
	// KindUtterance is model-produced text (queries, sentinels, answers).
	KindUtterance
	// KindToolCall is a request to run a named tool.
	KindToolCall
	// KindToolResult is the output of a tool call, correlated by ToolID.
	KindToolResult
)

// Message is one entry in the conversation log. The log is append-only for
// the duration of a run; messages are never edited or removed.
type Message struct {
	Kind     Kind
	Content  string
	ToolName string
	ToolID   string
	IsError  bool
}

// Tool names used in the conversation log.
const (
	toolListTables = "sql_db_list_tables"
	toolSchema     = "sql_db_schema"
	toolQuery      = "db_query_tool"
)

// Restaurant is one entity record in the final answer, shaped for map display.
type Restaurant struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Subway  string `json:"subway"`
	Lat     string `json:"lat"`
	Lng     string `json:"lng"`
	Menu    string `json:"menu"`
	Review  string `json:"review"`
}

// RunResult is what a completed run hands back to the caller. Answer is
// always populated, worst case with an apology.
type RunResult struct {
	Answer   string       `json:"answer"`
	Infos    []Restaurant `json:"infos"`
	Messages []Message    `json:"-"`
}

// CompleteOptions holds options for LLM completion.
type CompleteOptions struct {
	CacheSystemPrompt bool
}

// CompleteOption is a functional option for Complete.
type CompleteOption func(*CompleteOptions)

// WithCacheControl marks the system prompt as cacheable. The stage prompts
// are static across calls, so repeated runs hit the provider-side cache.
func WithCacheControl() CompleteOption {
	return func(o *CompleteOptions) {
		o.CacheSystemPrompt = true
	}
}

// LLMClient is the interface for interacting with an LLM.
type LLMClient interface {
	// Complete sends a prompt and returns the response text.
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CompleteOption) (string, error)
}

// QueryExecutor runs a candidate statement and classifies the outcome.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) sqltool.Outcome
}

// Store exposes the tool queries the agent needs beyond plain execution.
type Store interface {
	// ListTables returns the table names as result text.
	ListTables(ctx context.Context) (string, error)
	// TableInfo returns the schema description of one table.
	TableInfo(ctx context.Context, table string) (string, error)
	// MenusByRestaurant returns the menu rows belonging to one restaurant.
	MenusByRestaurant(ctx context.Context, restaurantID int64) ([]sqltool.Row, error)
	// MenusByRestaurants batches the lookup for several restaurants at once.
	MenusByRestaurants(ctx context.Context, restaurantIDs []int64) (map[int64][]sqltool.Row, error)
}

// Config holds the configuration for the agent.
type Config struct {
	Logger   *slog.Logger
	LLM      LLMClient
	Executor QueryExecutor
	Store    Store
	// MaxTurns bounds the conversation length; once exceeded the run is
	// forced to terminate regardless of classification (default 20).
	MaxTurns int
}

const defaultMaxTurns = 20

// Agent orchestrates the staged question-answering process.
type Agent struct {
	cfg *Config
	log *slog.Logger
}

// New creates a new Agent.
func New(cfg *Config) (*Agent, error) {
	if cfg.LLM == nil {
		return nil, errors.New("LLM client is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("query executor is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = defaultMaxTurns
	}
	return &Agent{cfg: cfg, log: cfg.Logger}, nil
}
