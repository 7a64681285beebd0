package results

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultDir is where records are written unless told otherwise.
const DefaultDir = "results"

// PerfPrefix marks performance records among other result files.
const PerfPrefix = "perf_"

//go:embed schema.json
var recordSchema []byte

// WriteError reports a failure to persist a record. The in-memory result is
// unaffected.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write results to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ValidationError lists the schema violations found in a record file.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Write stores rec at path, creating parent directories as needed. The file
// is written to a temporary name and renamed into place so a reader never
// sees a partial record.
func Write(path string, rec *Record) error {
	b, err := rec.Marshal()
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("encode record: %w", err)}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &WriteError{Path: path, Err: err}
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Load reads a record from path and validates it against the record schema.
func Load(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return Parse(path, b)
}

// Parse validates and decodes a record. name is used in error messages.
func Parse(name string, b []byte) (*Record, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(recordSchema),
		gojsonschema.NewBytesLoader(b),
	)
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", name, err)
	}
	if !result.Valid() {
		verr := &ValidationError{Path: name}
		for _, desc := range result.Errors() {
			verr.Problems = append(verr.Problems, desc.String())
		}
		return nil, verr
	}

	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", name, err)
	}
	rec.normalize()
	return &rec, nil
}

// DefaultPath returns dir/perf_<slug>.json for the given model name.
func DefaultPath(dir, model string) string {
	slug := Slugify(model)
	if slug == "" {
		slug = "unnamed"
	}
	return filepath.Join(dir, PerfPrefix+slug+".json")
}

// ModelFromFilename derives a model name from a result file name by
// dropping the directory, the .json extension, and any perf_ prefix.
func ModelFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".json")
	return strings.TrimPrefix(name, PerfPrefix)
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9_.]+`)
	slugRepeat  = regexp.MustCompile(`-+`)
)

// Slugify converts a model name into a file-name-safe slug, replacing
// colons with underscores and any other separator run with a single dash.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ":", "_")
	s = slugInvalid.ReplaceAllString(s, "-")
	s = slugRepeat.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_.")
	return s
}
