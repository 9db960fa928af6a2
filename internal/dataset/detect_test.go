package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectLooseDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFileString(t, filepath.Join(dir, "b.parquet"), "")
	writeFileString(t, filepath.Join(dir, "a.parquet"), "")
	writeFileString(t, filepath.Join(dir, "README.txt"), "not a shard")

	detection, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if detection.Format != FormatLoose {
		t.Fatalf("Format = %q", detection.Format)
	}
	if len(detection.Splits) != 1 || detection.Splits[0].Name != DefaultSplitName {
		t.Fatalf("Splits = %+v", detection.Splits)
	}
	shards := detection.Splits[0].Shards
	if len(shards) != 2 {
		t.Fatalf("shard count = %d", len(shards))
	}
	if filepath.Base(shards[0].Path) != "a.parquet" || filepath.Base(shards[1].Path) != "b.parquet" {
		t.Fatalf("shard order = %v, %v", shards[0].Path, shards[1].Path)
	}
}

func TestDetectLooseSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.parquet")
	writeFileString(t, path, "")

	detection, err := Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if detection.Format != FormatLoose {
		t.Fatalf("Format = %q", detection.Format)
	}
	if len(detection.Splits[0].Shards) != 1 || detection.Splits[0].Shards[0].Format != ShardParquet {
		t.Fatalf("Shards = %+v", detection.Splits[0].Shards)
	}
}

func TestDetectSingleSplitExport(t *testing.T) {
	dir := t.TempDir()
	exportSplitDir(t, dir, "train", []int64{1, 2}, []string{"a", "b"})
	writeFileString(t, filepath.Join(dir, infoManifestName),
		`{"splits": {"train": {"num_examples": 2}}}`)

	detection, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if detection.Format != FormatExport {
		t.Fatalf("Format = %q", detection.Format)
	}
	if len(detection.Splits) != 1 || detection.Splits[0].Name != "train" {
		t.Fatalf("Splits = %+v", detection.Splits)
	}
	split := detection.Splits[0]
	if len(split.Shards) != 1 || split.Shards[0].Format != ShardArrow {
		t.Fatalf("Shards = %+v", split.Shards)
	}
	if split.ApproxRows == nil || *split.ApproxRows != 2 {
		t.Fatalf("ApproxRows = %v", split.ApproxRows)
	}
}

func TestDetectMultiSplitExportHonorsDictOrder(t *testing.T) {
	dir := t.TempDir()
	exportSplitDir(t, mkdir(t, filepath.Join(dir, "train")), "train", []int64{1}, []string{"a"})
	exportSplitDir(t, mkdir(t, filepath.Join(dir, "test")), "test", []int64{2}, []string{"b"})
	// Lexicographic order would put "test" first; the dict manifest wins.
	writeFileString(t, filepath.Join(dir, dictManifestName), `{"splits": ["train", "test"]}`)

	detection, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if detection.Format != FormatExport {
		t.Fatalf("Format = %q", detection.Format)
	}
	if len(detection.Splits) != 2 {
		t.Fatalf("split count = %d", len(detection.Splits))
	}
	if detection.Splits[0].Name != "train" || detection.Splits[1].Name != "test" {
		t.Fatalf("split order = %q, %q", detection.Splits[0].Name, detection.Splits[1].Name)
	}
}

func TestDetectMultiSplitExportLexicographicWithoutDict(t *testing.T) {
	dir := t.TempDir()
	exportSplitDir(t, mkdir(t, filepath.Join(dir, "validation")), "validation", []int64{1}, []string{"a"})
	exportSplitDir(t, mkdir(t, filepath.Join(dir, "train")), "train", []int64{2}, []string{"b"})

	detection, err := Detect(dir)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if detection.Splits[0].Name != "train" || detection.Splits[1].Name != "validation" {
		t.Fatalf("split order = %q, %q", detection.Splits[0].Name, detection.Splits[1].Name)
	}
}

func TestDetectCorruptManifest(t *testing.T) {
	dir := t.TempDir()
	writeFileString(t, filepath.Join(dir, stateManifestName), `{not json`)

	_, err := Detect(dir)
	if !errors.Is(err, ErrCorruptManifest) {
		t.Fatalf("Detect() error = %v, want ErrCorruptManifest", err)
	}
}

func TestDetectManifestReferencingMissingShard(t *testing.T) {
	dir := t.TempDir()
	writeFileString(t, filepath.Join(dir, stateManifestName),
		`{"_data_files": [{"filename": "gone.arrow"}], "_split": "train"}`)

	_, err := Detect(dir)
	if !errors.Is(err, ErrCorruptManifest) {
		t.Fatalf("Detect() error = %v, want ErrCorruptManifest", err)
	}
}

func TestDetectUnrecognizedFormat(t *testing.T) {
	dir := t.TempDir()
	writeFileString(t, filepath.Join(dir, "notes.txt"), "nothing columnar here")

	_, err := Detect(dir)
	if !errors.Is(err, ErrUnrecognizedFormat) {
		t.Fatalf("Detect() error = %v, want ErrUnrecognizedFormat", err)
	}
}

func TestDetectMissingPath(t *testing.T) {
	_, err := Detect(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("Detect() error = %v, want ErrDatasetNotFound", err)
	}
}

func TestDetectIsReadOnly(t *testing.T) {
	dir := t.TempDir()
	writeFileString(t, filepath.Join(dir, "a.parquet"), "")
	before, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Detect(dir); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	after, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("detection changed directory contents: %d -> %d entries", len(before), len(after))
	}
}
