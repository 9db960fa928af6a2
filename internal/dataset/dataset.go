// Package dataset resolves on-disk machine-learning datasets into queryable
// splits. A dataset is one immediate child of a root directory; it is either a
// structured library export (a save_to_disk style folder described by
// state.json manifests) or a loose collection of parquet/arrow files.
package dataset

import "errors"

var (
	ErrRootNotFound       = errors.New("root path does not exist or is not a directory")
	ErrRootNotReadable    = errors.New("root path is not readable")
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrSplitNotFound      = errors.New("split not found")
	ErrUnrecognizedFormat = errors.New("unrecognized dataset format")
	ErrCorruptManifest    = errors.New("corrupt dataset manifest")
	ErrSchemaMismatch     = errors.New("shards within split have incompatible schemas")
)

type Format string

const (
	// FormatExport is a dataset folder written by a dataset library's
	// save_to_disk, carrying state.json manifests per split.
	FormatExport Format = "structured-library-export"
	// FormatLoose is a directory (or single file) of bare parquet/arrow
	// shards with no manifest. It always has exactly one split, "default".
	FormatLoose Format = "loose-columnar"
)

type ShardFormat string

const (
	ShardParquet ShardFormat = "parquet"
	ShardArrow   ShardFormat = "arrow"
)

// Shard is one physical columnar file contributing rows to a split.
type Shard struct {
	Path   string
	Format ShardFormat
}

// Split is a named partition of a dataset's rows. Its logical row set is the
// ordered concatenation of its shards; shard order is deterministic for a
// fixed on-disk state.
type Split struct {
	Dataset string
	Name    string
	Shards  []Shard

	// ApproxRows is a metadata-derived estimate, nil when no cheap source
	// exists. Never the result of a scan.
	ApproxRows *int64
}

// Column describes one column of a split's schema as stored on disk.
type Column struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
}

// Detection is the classification of a single dataset directory at one point
// in time. It is a pure function of on-disk contents.
type Detection struct {
	Format Format
	Path   string
	Splits []Split
}

// DefaultSplitName names the implicit split of loose-columnar datasets and of
// single-split exports whose manifest does not name one.
const DefaultSplitName = "default"
