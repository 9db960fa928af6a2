// Package duckdb binds split shards into an in-memory DuckDB database and
// executes user SQL against them. Every call opens its own database, binds
// the shards as the view the user's SQL addresses, and tears everything down
// before returning; nothing is shared between calls.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/dsviz/dsviz/internal/query"
)

// relationName is the fixed logical table user SQL references. It is scoped
// to the request-private database, so concurrent requests never collide.
const relationName = "t"

// offlineSettings pins every connection to local files only: DuckDB must
// never fetch or load extensions at query time.
var offlineSettings = []string{
	"SET autoinstall_known_extensions = false",
	"SET autoload_known_extensions = false",
}

type Engine struct {
	Limits query.Limits
}

func NewEngine(limits query.Limits) *Engine {
	return &Engine{Limits: limits}
}

// Run executes user SQL against the binding with the limit/offset safety
// policy applied. The statement is always wrapped in an outer
// SELECT * FROM (...) LIMIT n OFFSET m rather than text-scanned for existing
// clauses, and one extra row is fetched to detect truncation without a
// second counting query. Elapsed covers execution and fetch only, not
// binding.
func (e *Engine) Run(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, query.ErrEmptySQL
	}
	if request.Offset < 0 {
		return query.Result{}, fmt.Errorf("offset must be >= 0, got %d", request.Offset)
	}

	db, cleanup, err := e.bind(ctx, request.Binding)
	if err != nil {
		return query.Result{}, err
	}
	defer cleanup()

	effective := e.Limits.Effective(request.Limit)
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d OFFSET %d", sqlText, effective+1, request.Offset)

	start := time.Now()
	rows, err := db.QueryContext(ctx, wrapped)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, data, err := scanRows(rows)
	if err != nil {
		return query.Result{}, err
	}
	elapsed := time.Since(start)

	truncated := len(data) > effective
	if truncated {
		data = data[:effective]
	}

	return query.Result{
		Columns:   columns,
		Data:      toColumnar(columns, data),
		RowCount:  len(data),
		Truncated: truncated,
		Elapsed:   elapsed,
	}, nil
}

// Count runs an exact full-scan row count over the binding. Cancelling ctx
// aborts the scan and releases the database.
func (e *Engine) Count(ctx context.Context, binding query.Binding) (int64, error) {
	db, cleanup, err := e.bind(ctx, binding)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	var rows int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+relationName).Scan(&rows); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return rows, nil
}

// bind opens a request-private in-memory database and exposes the binding's
// shards as a single view. Parquet shards are scanned in place; arrow IPC
// shards are first staged as parquet into a temp dir that lives exactly as
// long as the returned cleanup. Shard order is preserved, so the relation's
// row order matches the binding's concatenation order.
func (e *Engine) bind(ctx context.Context, binding query.Binding) (*sql.DB, func(), error) {
	if len(binding.Shards) == 0 {
		return nil, nil, fmt.Errorf("split %q of dataset %q has no shards", binding.Split, binding.Dataset)
	}

	var workDir string
	cleanupDirs := func() {
		if workDir != "" {
			_ = os.RemoveAll(workDir)
		}
	}

	paths := make([]string, 0, len(binding.Shards))
	for index, shard := range binding.Shards {
		switch shard.Format {
		case query.ShardParquet:
			paths = append(paths, shard.Path)
		case query.ShardArrow:
			if workDir == "" {
				dir, err := os.MkdirTemp("", "dsviz-bind-")
				if err != nil {
					return nil, nil, fmt.Errorf("create staging dir: %w", err)
				}
				workDir = dir
			}
			staged := filepath.Join(workDir, fmt.Sprintf("shard_%04d.parquet", index))
			if err := stageArrowShard(shard.Path, staged); err != nil {
				cleanupDirs()
				return nil, nil, err
			}
			paths = append(paths, staged)
		default:
			cleanupDirs()
			return nil, nil, fmt.Errorf("unsupported shard format %q for %q", shard.Format, shard.Path)
		}
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		cleanupDirs()
		return nil, nil, fmt.Errorf("open duckdb: %w", err)
	}
	cleanup := func() {
		_ = db.Close()
		cleanupDirs()
	}

	for _, setting := range offlineSettings {
		if _, err := db.ExecContext(ctx, setting); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("apply offline setting: %w", err)
		}
	}

	viewSQL := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)",
		quoteIdent(relationName), quoteStringArray(paths))
	if _, err := db.ExecContext(ctx, viewSQL); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("bind split %q of dataset %q: %w", binding.Split, binding.Dataset, err)
	}
	return db, cleanup, nil
}

// scanRows drains rows into row-major order, normalizing driver byte slices
// to strings.
func scanRows(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	data := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		data = append(data, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, data, nil
}

// toColumnar transposes row-major scan output into the column-major transport
// shape.
func toColumnar(columns []string, rows [][]any) [][]any {
	data := make([][]any, len(columns))
	for i := range data {
		data[i] = make([]any, len(rows))
	}
	for rowIndex, row := range rows {
		for colIndex := range columns {
			data[colIndex][rowIndex] = row[colIndex]
		}
	}
	return data
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
