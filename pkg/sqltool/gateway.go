package sqltool

import (
	"context"
	"fmt"
	"strings"
)

// Executor runs a statement against the backing store. It reports SQL-level
// failures through the isError flag rather than the error return, which is
// reserved for infrastructure faults (connection loss, context cancellation).
type Executor interface {
	Execute(ctx context.Context, sql string) (text string, isError bool, err error)
}

// Status tags an execution outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusEmpty
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	case StatusFailure:
		return "failure"
	}
	return "unknown"
}

// Outcome is the result of one gated query execution.
type Outcome struct {
	Status Status
	Rows   []Row
	Raw    string // raw result text, kept for LLM context
	Reason string // failure reason when Status == StatusFailure
}

// mutationKeywords are rejected outright. The generation prompt already
// forbids DML, but prompt instructions are not a security boundary.
var mutationKeywords = []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE"}

// Gateway wraps an Executor and normalizes its results into a tagged Outcome.
// It never mutates data and never returns an error to its caller.
type Gateway struct {
	exec Executor
}

// NewGateway creates a Gateway backed by the given executor.
func NewGateway(exec Executor) *Gateway {
	return &Gateway{exec: exec}
}

// Execute cleans the statement, enforces the read-only guard, runs it and
// classifies the result. All failure paths produce a Failure outcome.
func (g *Gateway) Execute(ctx context.Context, sql string) Outcome {
	sql = CleanStatement(sql)
	if sql == "" {
		return Outcome{Status: StatusFailure, Reason: "empty statement"}
	}

	if kw := mutationKeyword(sql); kw != "" {
		return Outcome{
			Status: StatusFailure,
			Reason: fmt.Sprintf("statement rejected: %s is not allowed on a read-only connection", kw),
		}
	}

	text, isError, err := g.exec.Execute(ctx, sql)
	if err != nil {
		return Outcome{Status: StatusFailure, Reason: err.Error()}
	}
	if isError {
		return Outcome{Status: StatusFailure, Reason: strings.TrimSpace(text)}
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{Status: StatusEmpty}
	}

	return Outcome{Status: StatusSuccess, Rows: Normalize(text), Raw: text}
}

// CleanStatement trims whitespace and removes a single trailing semicolon.
// Some execution paths reject statements that carry one.
func CleanStatement(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}

func mutationKeyword(sql string) string {
	upper := strings.ToUpper(sql)
	for _, kw := range mutationKeywords {
		if strings.HasPrefix(upper, kw+" ") || strings.Contains(upper, " "+kw+" ") {
			return kw
		}
	}
	return ""
}
