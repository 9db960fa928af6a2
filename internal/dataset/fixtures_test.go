package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
)

type fixtureRow struct {
	ID    int64  `parquet:"id"`
	Value string `parquet:"value"`
}

func writeParquetShard(t *testing.T, path string, rows []fixtureRow) {
	t.Helper()
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[fixtureRow](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			t.Fatalf("write parquet rows: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write parquet shard: %v", err)
	}
}

// writeArrowShard writes the IPC streaming format, which is what library
// exports produce.
func writeArrowShard(t *testing.T, path string, ids []int64, values []string) {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "value", Type: arrow.BinaryTypes.String},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues(ids, nil)
	builder.Field(1).(*array.StringBuilder).AppendValues(values, nil)
	record := builder.NewRecord()
	defer record.Release()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create arrow shard: %v", err)
	}
	defer func() { _ = file.Close() }()

	writer := ipc.NewWriter(file, ipc.WithSchema(schema))
	if err := writer.Write(record); err != nil {
		t.Fatalf("write arrow record: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close arrow writer: %v", err)
	}
}

func writeFileString(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mkdir(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	return path
}

// exportSplitDir lays down a minimal single-split export: a state.json
// manifest plus one arrow shard.
func exportSplitDir(t *testing.T, dir, splitName string, ids []int64, values []string) {
	t.Helper()
	writeArrowShard(t, filepath.Join(dir, "data-00000-of-00001.arrow"), ids, values)
	writeFileString(t, filepath.Join(dir, stateManifestName),
		`{"_data_files": [{"filename": "data-00000-of-00001.arrow"}], "_split": "`+splitName+`"}`)
}
