package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dsviz/dsviz/internal/config"
	"github.com/dsviz/dsviz/internal/dataset"
	"github.com/dsviz/dsviz/internal/observability"
	"github.com/dsviz/dsviz/internal/query"
)

// DatasetResolver is the catalog/split surface the handlers need; the
// concrete implementation lives in internal/dataset.
type DatasetResolver interface {
	ListDatasets(root string) ([]string, error)
	ListSplits(root, name string) ([]string, error)
	ResolveSplit(root, name, splitName string) (dataset.Split, error)
	SplitSchema(root, name, splitName string) ([]dataset.Column, *int64, error)
}

type Dependencies struct {
	Logger   *slog.Logger
	Resolver DatasetResolver
	Engine   query.Engine
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /datasets", func(w http.ResponseWriter, r *http.Request) {
		handleListDatasets(cfg, deps, w, r)
	})
	mux.HandleFunc("GET /datasets/{name}/splits", func(w http.ResponseWriter, r *http.Request) {
		handleListSplits(cfg, deps, w, r)
	})
	mux.HandleFunc("GET /datasets/{name}/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(cfg, deps, w, r)
	})
	mux.HandleFunc("GET /datasets/{name}/count", func(w http.ResponseWriter, r *http.Request) {
		handleCount(cfg, deps, w, r)
	})
	mux.HandleFunc("POST /datasets/{name}/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(cfg, deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
		corsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// rootFromRequest picks the request's root parameter, falling back to the
// configured directory. The root is re-validated on every request.
func rootFromRequest(cfg config.Config, r *http.Request) (string, error) {
	root := r.URL.Query().Get("root")
	if root == "" {
		root = cfg.Datasets.Root
	}
	if root == "" {
		return "", errors.New("root query parameter is required")
	}
	return root, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(r *http.Request, w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  false,
		"context":    nil,
		"trace_id":   observability.TraceIDFromContext(r.Context()),
	})
}

// writeDatasetError maps the resolver's error taxonomy onto HTTP statuses.
// Every failure is local to this request and surfaced as a single
// human-readable message.
func writeDatasetError(r *http.Request, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dataset.ErrRootNotFound):
		writeError(r, w, http.StatusNotFound, "ROOT_NOT_FOUND", err.Error())
	case errors.Is(err, dataset.ErrRootNotReadable):
		writeError(r, w, http.StatusBadRequest, "ROOT_NOT_READABLE", err.Error())
	case errors.Is(err, dataset.ErrDatasetNotFound):
		writeError(r, w, http.StatusNotFound, "DATASET_NOT_FOUND", err.Error())
	case errors.Is(err, dataset.ErrSplitNotFound):
		writeError(r, w, http.StatusNotFound, "SPLIT_NOT_FOUND", err.Error())
	case errors.Is(err, dataset.ErrUnrecognizedFormat):
		writeError(r, w, http.StatusBadRequest, "UNRECOGNIZED_FORMAT", err.Error())
	case errors.Is(err, dataset.ErrCorruptManifest):
		writeError(r, w, http.StatusBadRequest, "CORRUPT_MANIFEST", err.Error())
	case errors.Is(err, dataset.ErrSchemaMismatch):
		writeError(r, w, http.StatusBadRequest, "SCHEMA_MISMATCH", err.Error())
	default:
		writeError(r, w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// clientGone reports whether the request was cancelled by the caller, in
// which case no response is written: abandonment is not an error to report.
func clientGone(r *http.Request) bool {
	return r.Context().Err() != nil
}
