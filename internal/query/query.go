package query

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmptySQL rejects blank statements before any binding work happens.
var ErrEmptySQL = errors.New("sql is required")

type ShardFormat string

const (
	ShardParquet ShardFormat = "parquet"
	ShardArrow   ShardFormat = "arrow"
)

// Shard is one columnar file the engine must bind. Order is significant: the
// bound relation is the concatenation of shards in slice order.
type Shard struct {
	Path   string
	Format ShardFormat
}

// Binding describes the relation a request queries: one split of one dataset,
// materialized under the fixed logical table name for the duration of exactly
// one call. No binding is shared or reused across calls.
type Binding struct {
	Dataset string
	Split   string
	Shards  []Shard
}

// Limits is the response-size safety policy. Default applies when the caller
// requests nothing, Max is the hard ceiling every request is clamped to.
type Limits struct {
	Default int
	Max     int
}

// Validate enforces 1 <= Default <= Max.
func (l Limits) Validate() error {
	if l.Default < 1 {
		return fmt.Errorf("default limit must be >= 1, got %d", l.Default)
	}
	if l.Max < l.Default {
		return fmt.Errorf("max limit %d must be >= default limit %d", l.Max, l.Default)
	}
	return nil
}

// Effective clamps a requested limit to [1, Max], substituting Default for an
// unset (zero) request.
func (l Limits) Effective(requested int) int {
	if requested <= 0 {
		requested = l.Default
	}
	if requested > l.Max {
		return l.Max
	}
	return requested
}

// Request carries user SQL against a binding. Limit zero means "apply the
// default policy"; Offset is row-based and defaults to zero.
type Request struct {
	Binding Binding
	SQL     string
	Limit   int
	Offset  int
}

// Result is the columnar query outcome. Data is column-major: Data[i] holds
// every value of Columns[i], so len(Data) == len(Columns) and each inner
// slice has RowCount entries.
type Result struct {
	Columns   []string
	Data      [][]any
	RowCount  int
	Truncated bool
	Elapsed   time.Duration
}

// Engine executes read-only SQL against request-scoped bindings.
type Engine interface {
	Run(ctx context.Context, request Request) (Result, error)
	// Count performs a deliberate full-scan COUNT(*) over the binding. It is
	// a separate operation from Run because it may be expensive; callers must
	// trigger it explicitly.
	Count(ctx context.Context, binding Binding) (int64, error)
}
