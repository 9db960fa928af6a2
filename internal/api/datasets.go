package api

import (
	"net/http"
	"time"

	"github.com/dsviz/dsviz/internal/config"
	"github.com/dsviz/dsviz/internal/dataset"
	"github.com/dsviz/dsviz/internal/observability"
	"github.com/dsviz/dsviz/internal/query"
)

func handleListDatasets(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	root, err := rootFromRequest(cfg, r)
	if err != nil {
		writeError(r, w, http.StatusBadRequest, "ROOT_REQUIRED", err.Error())
		return
	}
	datasets, err := deps.Resolver.ListDatasets(root)
	if err != nil {
		writeDatasetError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"datasets": datasets})
}

func handleListSplits(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	root, err := rootFromRequest(cfg, r)
	if err != nil {
		writeError(r, w, http.StatusBadRequest, "ROOT_REQUIRED", err.Error())
		return
	}
	splits, err := deps.Resolver.ListSplits(root, r.PathValue("name"))
	if err != nil {
		writeDatasetError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"splits": splits})
}

func handleSchema(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	root, err := rootFromRequest(cfg, r)
	if err != nil {
		writeError(r, w, http.StatusBadRequest, "ROOT_REQUIRED", err.Error())
		return
	}
	columns, approxRows, err := deps.Resolver.SplitSchema(root, r.PathValue("name"), r.URL.Query().Get("split"))
	if err != nil {
		writeDatasetError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"columns":     columns,
		"approx_rows": approxRows,
	})
}

// handleCount runs the exact full-scan count. It exists as its own endpoint,
// never as part of the query flow, because it can be slow on large splits;
// the caller decides when that cost is worth paying.
func handleCount(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	root, err := rootFromRequest(cfg, r)
	if err != nil {
		writeError(r, w, http.StatusBadRequest, "ROOT_REQUIRED", err.Error())
		return
	}

	splitName := r.URL.Query().Get("split")
	split, err := deps.Resolver.ResolveSplit(root, r.PathValue("name"), splitName)
	if err != nil {
		writeDatasetError(r, w, err)
		return
	}
	if _, _, err := deps.Resolver.SplitSchema(root, r.PathValue("name"), splitName); err != nil {
		writeDatasetError(r, w, err)
		return
	}

	start := time.Now()
	rows, err := deps.Engine.Count(r.Context(), toBinding(split))
	if err != nil {
		if clientGone(r) {
			return
		}
		writeError(r, w, http.StatusBadRequest, "COUNT_FAILED", err.Error())
		return
	}
	observability.ObserveCount(time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func toBinding(split dataset.Split) query.Binding {
	shards := make([]query.Shard, 0, len(split.Shards))
	for _, shard := range split.Shards {
		shards = append(shards, query.Shard{
			Path:   shard.Path,
			Format: query.ShardFormat(shard.Format),
		})
	}
	return query.Binding{Dataset: split.Dataset, Split: split.Name, Shards: shards}
}
