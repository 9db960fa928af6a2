package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	stateManifestName = "state.json"
	dictManifestName  = "dataset_dict.json"
	infoManifestName  = "dataset_info.json"
)

// stateManifest is the per-split manifest written by library exports. Only the
// fields the resolver needs are decoded.
type stateManifest struct {
	DataFiles []struct {
		Filename string `json:"filename"`
	} `json:"_data_files"`
	Split string `json:"_split"`
}

type dictManifest struct {
	Splits []string `json:"splits"`
}

type infoManifest struct {
	Splits map[string]struct {
		NumExamples *int64 `json:"num_examples"`
	} `json:"splits"`
}

// Detect classifies the dataset at path. The path may be a directory or a
// single loose columnar file. Classification reads manifests and directory
// listings only; it never opens shard data.
func Detect(path string) (Detection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Detection{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
	}

	name := filepath.Base(path)
	if !info.IsDir() {
		if shardFormatFor(path) == "" {
			return Detection{}, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
		}
		return Detection{
			Format: FormatLoose,
			Path:   path,
			Splits: []Split{{
				Dataset: name,
				Name:    DefaultSplitName,
				Shards:  []Shard{{Path: path, Format: shardFormatFor(path)}},
			}},
		}, nil
	}

	if hasFile(path, stateManifestName) {
		split, err := readExportSplit(name, path)
		if err != nil {
			return Detection{}, err
		}
		return Detection{Format: FormatExport, Path: path, Splits: []Split{split}}, nil
	}

	if splits, ok, err := readExportSplitDirs(name, path); err != nil {
		return Detection{}, err
	} else if ok {
		return Detection{Format: FormatExport, Path: path, Splits: splits}, nil
	}

	shards, err := looseShards(path)
	if err != nil {
		return Detection{}, err
	}
	if len(shards) == 0 {
		return Detection{}, fmt.Errorf("%w: %s", ErrUnrecognizedFormat, path)
	}
	return Detection{
		Format: FormatLoose,
		Path:   path,
		Splits: []Split{{Dataset: name, Name: DefaultSplitName, Shards: shards, ApproxRows: nil}},
	}, nil
}

// readExportSplit parses the state.json at dir and resolves its shard list.
// Split name comes from the manifest, falling back to "default".
func readExportSplit(dataset, dir string) (Split, error) {
	var manifest stateManifest
	if err := readJSON(filepath.Join(dir, stateManifestName), &manifest); err != nil {
		return Split{}, fmt.Errorf("%w: %s: %v", ErrCorruptManifest, filepath.Join(dir, stateManifestName), err)
	}

	shards := make([]Shard, 0, len(manifest.DataFiles))
	for _, entry := range manifest.DataFiles {
		shardPath := filepath.Join(dir, entry.Filename)
		format := shardFormatFor(shardPath)
		if format == "" {
			return Split{}, fmt.Errorf("%w: %s references non-columnar file %q", ErrCorruptManifest, dir, entry.Filename)
		}
		if _, err := os.Stat(shardPath); err != nil {
			return Split{}, fmt.Errorf("%w: %s references missing shard %q", ErrCorruptManifest, dir, entry.Filename)
		}
		shards = append(shards, Shard{Path: shardPath, Format: format})
	}
	if len(shards) == 0 {
		// Older exports omit _data_files; fall back to the directory listing.
		var err error
		shards, err = looseShards(dir)
		if err != nil {
			return Split{}, err
		}
	}

	splitName := strings.TrimSpace(manifest.Split)
	if splitName == "" {
		splitName = DefaultSplitName
	}
	return Split{
		Dataset:    dataset,
		Name:       splitName,
		Shards:     shards,
		ApproxRows: approxRowsFromInfo(dir, splitName),
	}, nil
}

// readExportSplitDirs detects the multi-split layout: immediate subdirectories
// each carrying their own state.json. Split order follows dataset_dict.json
// when present, otherwise it is lexicographic.
func readExportSplitDirs(dataset, dir string) ([]Split, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, false, fmt.Errorf("read dataset dir %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if hasFile(filepath.Join(dir, entry.Name()), stateManifestName) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, false, nil
	}
	names = orderSplitNames(dir, names)

	splits := make([]Split, 0, len(names))
	for _, splitDir := range names {
		split, err := readExportSplit(dataset, filepath.Join(dir, splitDir))
		if err != nil {
			return nil, false, err
		}
		// The subdirectory name is authoritative for multi-split layouts.
		split.Name = splitDir
		if split.ApproxRows == nil {
			split.ApproxRows = approxRowsFromInfo(filepath.Join(dir, splitDir), splitDir)
		}
		splits = append(splits, split)
	}
	return splits, true, nil
}

func orderSplitNames(dir string, names []string) []string {
	sort.Strings(names)

	var dict dictManifest
	if err := readJSON(filepath.Join(dir, dictManifestName), &dict); err != nil || len(dict.Splits) == 0 {
		return names
	}

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	ordered := make([]string, 0, len(names))
	for _, name := range dict.Splits {
		if present[name] {
			ordered = append(ordered, name)
			present[name] = false
		}
	}
	for _, name := range names {
		if present[name] {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// approxRowsFromInfo reads the split's num_examples from dataset_info.json
// when the export recorded one. Returns nil when unavailable.
func approxRowsFromInfo(dir, splitName string) *int64 {
	var info infoManifest
	if err := readJSON(filepath.Join(dir, infoManifestName), &info); err != nil {
		return nil
	}
	entry, ok := info.Splits[splitName]
	if !ok || entry.NumExamples == nil || *entry.NumExamples < 0 {
		return nil
	}
	return entry.NumExamples
}

// looseShards lists qualifying columnar files directly inside dir,
// non-recursive, in lexicographic order.
func looseShards(dir string) ([]Shard, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir %q: %w", dir, err)
	}
	shards := make([]Shard, 0)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		shardPath := filepath.Join(dir, entry.Name())
		if format := shardFormatFor(shardPath); format != "" {
			shards = append(shards, Shard{Path: shardPath, Format: format})
		}
	}
	return shards, nil
}

func shardFormatFor(path string) ShardFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return ShardParquet
	case ".arrow":
		return ShardArrow
	default:
		return ""
	}
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
