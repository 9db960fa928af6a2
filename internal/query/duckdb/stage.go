package duckdb

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// stageArrowShard rewrites an arrow IPC shard as parquet at dst so DuckDB can
// scan it with read_parquet. DuckDB core reads IPC only through an extension
// it would have to download, which offline mode rules out. Record batches are
// streamed through one at a time; the shard is never fully resident.
//
// Exports write the IPC streaming format, standalone tools usually the file
// format; both are accepted by sniffing the ARROW1 magic.
func stageArrowShard(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open arrow shard %q: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if isArrowFile(in) {
		reader, err := ipc.NewFileReader(in)
		if err != nil {
			return fmt.Errorf("read arrow shard %q: %w", src, err)
		}
		defer func() { _ = reader.Close() }()
		return writeParquet(dst, reader.Schema(), reader.Read)
	}

	reader, err := ipc.NewReader(in)
	if err != nil {
		return fmt.Errorf("read arrow shard %q: %w", src, err)
	}
	defer reader.Release()
	return writeParquet(dst, reader.Schema(), reader.Read)
}

// writeParquet drains records from next (which ends with io.EOF) into a
// parquet file carrying the same schema. A shard with zero record batches
// still produces a valid schema-only file.
func writeParquet(dst string, schema *arrow.Schema, next func() (arrow.Record, error)) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create staged shard %q: %w", dst, err)
	}
	defer func() { _ = out.Close() }()

	writer, err := pqarrow.NewFileWriter(schema, out, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("open parquet writer for %q: %w", dst, err)
	}

	for {
		record, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = writer.Close()
			return fmt.Errorf("read arrow record: %w", err)
		}
		// The reader owns the record; it stays valid until the next call.
		if err := writer.Write(record); err != nil {
			_ = writer.Close()
			return fmt.Errorf("stage arrow record to %q: %w", dst, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close staged shard %q: %w", dst, err)
	}
	return nil
}

func isArrowFile(file *os.File) bool {
	magic := make([]byte, 6)
	n, _ := file.ReadAt(magic, 0)
	_, _ = file.Seek(0, io.SeekStart)
	return n == 6 && string(magic) == "ARROW1"
}
