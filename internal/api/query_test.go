package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dsviz/dsviz/internal/query"
)

func queryHandler(engine *fakeEngine) http.Handler {
	return NewHandler(testConfig("/data"), Dependencies{Resolver: defaultResolver(), Engine: engine})
}

func TestQuerySuccess(t *testing.T) {
	engine := &fakeEngine{result: query.Result{
		Columns:   []string{"id", "value"},
		Data:      [][]any{{int64(1), int64(2)}, {"a", "b"}},
		RowCount:  2,
		Truncated: false,
		Elapsed:   1500 * time.Microsecond,
	}}
	handler := queryHandler(engine)

	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query",
		`{"sql": "SELECT id, value FROM t", "split": "train"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	payload := decodeBody(t, recorder)
	columns := payload["columns"].([]any)
	if len(columns) != 2 || columns[0] != "id" {
		t.Fatalf("columns = %v", payload["columns"])
	}
	data := payload["data"].([]any)
	if len(data) != 2 {
		t.Fatalf("data = %v", payload["data"])
	}
	first := data[0].([]any)
	if len(first) != 2 || first[0] != float64(1) {
		t.Fatalf("first column = %v", first)
	}
	if payload["row_count"] != float64(2) || payload["truncated"] != false {
		t.Fatalf("payload = %v", payload)
	}
	if payload["elapsed_ms"] != 1.5 {
		t.Fatalf("elapsed_ms = %v", payload["elapsed_ms"])
	}

	if engine.lastRun.SQL != "SELECT id, value FROM t" {
		t.Fatalf("engine SQL = %q", engine.lastRun.SQL)
	}
	if engine.lastRun.Binding.Dataset != "events" || engine.lastRun.Binding.Split != "train" {
		t.Fatalf("binding = %+v", engine.lastRun.Binding)
	}
}

func TestQueryDefaultsToFirstSplit(t *testing.T) {
	engine := &fakeEngine{result: query.Result{Columns: []string{"c"}, Data: [][]any{{}}}}
	handler := queryHandler(engine)

	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query", `{"sql": "SELECT 1"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if engine.lastRun.Binding.Split != "train" {
		t.Fatalf("split = %q", engine.lastRun.Binding.Split)
	}
}

func TestQueryPassesLimitAndOffset(t *testing.T) {
	engine := &fakeEngine{result: query.Result{Columns: []string{"c"}, Data: [][]any{{}}}}
	handler := queryHandler(engine)

	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query",
		`{"sql": "SELECT 1", "limit": 50, "offset": 100}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	if engine.lastRun.Limit != 50 || engine.lastRun.Offset != 100 {
		t.Fatalf("limit/offset = %d/%d", engine.lastRun.Limit, engine.lastRun.Offset)
	}
}

func TestQueryMissingSQL(t *testing.T) {
	engine := &fakeEngine{}
	handler := queryHandler(engine)

	for _, body := range []string{`{}`, `{"sql": "   "}`} {
		recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query", body)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("status = %d for body %s", recorder.Code, body)
		}
		if decodeBody(t, recorder)["error_code"] != "SQL_REQUIRED" {
			t.Fatalf("body = %s", recorder.Body.String())
		}
	}
	if engine.runCalls != 0 {
		t.Fatal("engine reached without sql")
	}
}

func TestQueryInvalidJSON(t *testing.T) {
	handler := queryHandler(&fakeEngine{})
	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query", `{not json`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error_code"] != "INVALID_JSON" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestQueryRejectsUnknownFields(t *testing.T) {
	handler := queryHandler(&fakeEngine{})
	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query",
		`{"sql": "SELECT 1", "page": 3}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error_code"] != "INVALID_JSON" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestQueryInvalidLimit(t *testing.T) {
	handler := queryHandler(&fakeEngine{})
	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query",
		`{"sql": "SELECT 1", "limit": 0}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error_code"] != "INVALID_LIMIT" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestQueryInvalidOffset(t *testing.T) {
	handler := queryHandler(&fakeEngine{})
	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query",
		`{"sql": "SELECT 1", "offset": -1}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error_code"] != "INVALID_OFFSET" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestQueryUnknownDataset(t *testing.T) {
	handler := queryHandler(&fakeEngine{})
	recorder := doRequest(t, handler, http.MethodPost, "/datasets/absent/query", `{"sql": "SELECT 1"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error_code"] != "DATASET_NOT_FOUND" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestQueryUnknownSplit(t *testing.T) {
	handler := queryHandler(&fakeEngine{})
	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query",
		`{"sql": "SELECT 1", "split": "absent"}`)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error_code"] != "SPLIT_NOT_FOUND" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}

func TestQueryEngineErrorPassedThrough(t *testing.T) {
	engine := &fakeEngine{runErr: errors.New(`Parser Error: syntax error at or near "SELEC"`)}
	handler := queryHandler(engine)

	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query", `{"sql": "SELEC 1"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	if payload["error_code"] != "QUERY_EXECUTION_FAILED" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
	if payload["message"] != `Parser Error: syntax error at or near "SELEC"` {
		t.Fatalf("message = %v", payload["message"])
	}
}

func TestQueryEmptySQLFromEngine(t *testing.T) {
	engine := &fakeEngine{runErr: query.ErrEmptySQL}
	handler := queryHandler(engine)

	recorder := doRequest(t, handler, http.MethodPost, "/datasets/events/query", `{"sql": ";;"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	if decodeBody(t, recorder)["error_code"] != "SQL_REQUIRED" {
		t.Fatalf("body = %s", recorder.Body.String())
	}
}
