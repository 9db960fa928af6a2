package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/parquet-go/parquet-go"
)

// SplitSchema reports the declared columns of a split together with a cheap
// approximate row count. Schema comes from shard metadata (parquet footers,
// arrow IPC headers), never from running SQL; the approximate count comes
// from the export manifest or summed parquet footers and is nil when neither
// source exists. No shard data pages are read.
func (r *Resolver) SplitSchema(root, name, splitName string) ([]Column, *int64, error) {
	split, err := r.ResolveSplit(root, name, splitName)
	if err != nil {
		return nil, nil, err
	}
	columns, err := VerifySplitSchema(split)
	if err != nil {
		return nil, nil, err
	}
	return columns, splitApproxRows(split), nil
}

// VerifySplitSchema reads every shard's declared schema and checks they are
// union-compatible (identical ordered column names and types). The shared
// schema is returned; any divergence is a hard ErrSchemaMismatch, never
// auto-reconciled.
func VerifySplitSchema(split Split) ([]Column, error) {
	var columns []Column
	var first string
	for _, shard := range split.Shards {
		shardCols, err := shardColumns(shard)
		if err != nil {
			return nil, err
		}
		if columns == nil {
			columns, first = shardCols, shard.Path
			continue
		}
		if !columnsEqual(columns, shardCols) {
			return nil, fmt.Errorf("%w: %s vs %s", ErrSchemaMismatch, first, shard.Path)
		}
	}
	if columns == nil {
		columns = []Column{}
	}
	return columns, nil
}

func columnsEqual(a, b []Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func splitApproxRows(split Split) *int64 {
	if split.ApproxRows != nil {
		return split.ApproxRows
	}
	var total int64
	for _, shard := range split.Shards {
		if shard.Format != ShardParquet {
			return nil
		}
		rows, err := parquetShardRows(shard.Path)
		if err != nil {
			return nil
		}
		total += rows
	}
	return &total
}

func shardColumns(shard Shard) ([]Column, error) {
	switch shard.Format {
	case ShardParquet:
		return parquetShardColumns(shard.Path)
	case ShardArrow:
		return arrowShardColumns(shard.Path)
	default:
		return nil, fmt.Errorf("%w: shard %q", ErrUnrecognizedFormat, shard.Path)
	}
}

func parquetShardColumns(path string) ([]Column, error) {
	file, size, err := openShard(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	pf, err := parquet.OpenFile(file, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet shard %q: %w", path, err)
	}
	fields := pf.Schema().Fields()
	columns := make([]Column, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, Column{Name: field.Name(), DType: parquetDType(field)})
	}
	return columns, nil
}

func parquetShardRows(path string) (int64, error) {
	file, size, err := openShard(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	pf, err := parquet.OpenFile(file, size)
	if err != nil {
		return 0, fmt.Errorf("open parquet shard %q: %w", path, err)
	}
	return pf.NumRows(), nil
}

func arrowShardColumns(path string) ([]Column, error) {
	schema, err := arrowShardSchema(path)
	if err != nil {
		return nil, err
	}
	columns := make([]Column, 0, schema.NumFields())
	for _, field := range schema.Fields() {
		columns = append(columns, Column{Name: field.Name, DType: arrowDType(field.Type)})
	}
	return columns, nil
}

// arrowShardSchema reads the schema of an arrow IPC shard. Library exports
// write the streaming format while standalone tools usually write the file
// format; both carry the schema up front, so neither requires reading record
// batches.
func arrowShardSchema(path string) (*arrow.Schema, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open arrow shard %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	if isArrowFileFormat(file) {
		reader, err := ipc.NewFileReader(file)
		if err != nil {
			return nil, fmt.Errorf("read arrow shard %q: %w", path, err)
		}
		defer func() { _ = reader.Close() }()
		return reader.Schema(), nil
	}

	reader, err := ipc.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("read arrow shard %q: %w", path, err)
	}
	defer reader.Release()
	return reader.Schema(), nil
}

// isArrowFileFormat sniffs the ARROW1 magic and leaves the file positioned at
// the start.
func isArrowFileFormat(file *os.File) bool {
	magic := make([]byte, 6)
	n, _ := file.ReadAt(magic, 0)
	_, _ = file.Seek(0, io.SeekStart)
	return n == 6 && string(magic) == "ARROW1"
}

func openShard(path string) (*os.File, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open shard %q: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, 0, fmt.Errorf("stat shard %q: %w", path, err)
	}
	return file, info.Size(), nil
}

func parquetDType(field parquet.Field) string {
	if !field.Leaf() {
		return "struct"
	}
	t := field.Type()
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.UTF8 != nil:
			return "string"
		case lt.Date != nil:
			return "date32"
		case lt.Timestamp != nil:
			return "timestamp"
		case lt.Json != nil:
			return "json"
		case lt.Decimal != nil:
			return "decimal"
		}
	}
	switch t.Kind() {
	case parquet.Boolean:
		return "bool"
	case parquet.Int32:
		return "int32"
	case parquet.Int64:
		return "int64"
	case parquet.Float:
		return "float32"
	case parquet.Double:
		return "float64"
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return "binary"
	default:
		return "unknown"
	}
}

func arrowDType(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "string"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "binary"
	case arrow.BOOL:
		return "bool"
	default:
		return dt.String()
	}
}
