package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Resolver answers catalog, split, and schema questions against a root
// directory supplied per call. It holds no state besides an optional
// read-through detection cache; every answer is re-derived from disk.
type Resolver struct {
	cache *detectCache
}

// NewResolver builds a resolver whose detection results are cached for ttl.
// A zero or negative ttl disables caching entirely.
func NewResolver(ttl time.Duration) *Resolver {
	return &Resolver{cache: newDetectCache(ttl)}
}

// ValidateRoot resolves root to an absolute path and verifies it is a
// readable directory.
func ValidateRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", fmt.Errorf("%w: empty root", ErrRootNotFound)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrRootNotFound, abs)
	}
	if _, err := os.ReadDir(abs); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return "", fmt.Errorf("%w: %s", ErrRootNotReadable, abs)
		}
		return "", fmt.Errorf("%w: %s", ErrRootNotFound, abs)
	}
	return abs, nil
}

// ListDatasets enumerates the immediate children of root that classify as
// datasets, in lexicographic order. Entries that fail detection are skipped,
// never reported: a root holding unrelated files still yields its valid
// subset.
func (r *Resolver) ListDatasets(root string) ([]string, error) {
	abs, err := ValidateRoot(root)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRootNotReadable, abs)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := r.detect(abs, entry.Name()); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// ListSplits returns the split names of one dataset in their resolved order.
func (r *Resolver) ListSplits(root, name string) ([]string, error) {
	detection, err := r.Resolve(root, name)
	if err != nil {
		return nil, err
	}
	splits := make([]string, 0, len(detection.Splits))
	for _, split := range detection.Splits {
		splits = append(splits, split.Name)
	}
	return splits, nil
}

// ResolveSplit resolves one split of a dataset to its shard list. An empty
// splitName selects the dataset's first split.
func (r *Resolver) ResolveSplit(root, name, splitName string) (Split, error) {
	detection, err := r.Resolve(root, name)
	if err != nil {
		return Split{}, err
	}
	if splitName == "" {
		return detection.Splits[0], nil
	}
	for _, split := range detection.Splits {
		if split.Name == splitName {
			return split, nil
		}
	}
	return Split{}, fmt.Errorf("%w: %q in dataset %q", ErrSplitNotFound, splitName, name)
}

// Resolve classifies one dataset under root, going through the detection
// cache when one is configured.
func (r *Resolver) Resolve(root, name string) (Detection, error) {
	abs, err := ValidateRoot(root)
	if err != nil {
		return Detection{}, err
	}
	return r.detect(abs, name)
}

func (r *Resolver) detect(root, name string) (Detection, error) {
	// Dataset names are plain entries of the root; anything that would
	// escape it resolves to a miss, not an error class of its own.
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return Detection{}, fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
	}
	if detection, ok := r.cache.get(root, name); ok {
		return detection, nil
	}
	detection, err := Detect(filepath.Join(root, name))
	if err != nil {
		return Detection{}, err
	}
	r.cache.put(root, name, detection)
	return detection, nil
}
