package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dsviz/dsviz/internal/config"
	"github.com/dsviz/dsviz/internal/observability"
	"github.com/dsviz/dsviz/internal/query"
)

type queryRequest struct {
	SQL    string  `json:"sql"`
	Split  *string `json:"split"`
	Limit  *int    `json:"limit"`
	Offset *int    `json:"offset"`
}

type queryResponse struct {
	Columns   []string `json:"columns"`
	Data      [][]any  `json:"data"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
	ElapsedMs float64  `json:"elapsed_ms"`
}

func handleQuery(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	root, err := rootFromRequest(cfg, r)
	if err != nil {
		writeError(r, w, http.StatusBadRequest, "ROOT_REQUIRED", err.Error())
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r, w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body: "+err.Error())
		return
	}

	if strings.TrimSpace(request.SQL) == "" {
		writeError(r, w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required")
		return
	}
	limit := 0
	if request.Limit != nil {
		if *request.Limit < 1 {
			writeError(r, w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be >= 1")
			return
		}
		limit = *request.Limit
	}
	offset := 0
	if request.Offset != nil {
		if *request.Offset < 0 {
			writeError(r, w, http.StatusBadRequest, "INVALID_OFFSET", "offset must be >= 0")
			return
		}
		offset = *request.Offset
	}
	splitName := ""
	if request.Split != nil {
		splitName = *request.Split
	}

	split, err := deps.Resolver.ResolveSplit(root, r.PathValue("name"), splitName)
	if err != nil {
		writeDatasetError(r, w, err)
		return
	}
	// Binding fails fast on incompatible shards instead of surfacing an
	// engine error mid-scan.
	if _, _, err := deps.Resolver.SplitSchema(root, r.PathValue("name"), splitName); err != nil {
		writeDatasetError(r, w, err)
		return
	}

	result, err := deps.Engine.Run(r.Context(), query.Request{
		Binding: toBinding(split),
		SQL:     request.SQL,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		if clientGone(r) {
			return
		}
		if errors.Is(err, query.ErrEmptySQL) {
			writeError(r, w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required")
			return
		}
		// Engine errors (syntax or execution) are deterministic and
		// user-recoverable; the message is passed through verbatim.
		writeError(r, w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", err.Error())
		return
	}

	observability.ObserveQuery(result.Elapsed, result.RowCount, result.Truncated)
	writeJSON(w, http.StatusOK, queryResponse{
		Columns:   result.Columns,
		Data:      result.Data,
		RowCount:  result.RowCount,
		Truncated: result.Truncated,
		ElapsedMs: float64(result.Elapsed.Microseconds()) / 1000.0,
	})
}
