package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultLocalDir is the record directory of the local database backend
const DefaultLocalDir = "/data/imgapi/manifests"

var rawFileRE = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.raw$`)

// IsRawFileName reports whether name is a "<uuid>.raw" record file name.
func IsRawFileName(name string) bool {
	return rawFileRE.MatchString(name)
}

// LocalSource reads "<uuid>.raw" JSON files from a directory.
type LocalSource struct {
	dir    string
	logger zerolog.Logger
}

// NewLocalSource creates a source over dir
func NewLocalSource(dir string) *LocalSource {
	if dir == "" {
		dir = DefaultLocalDir
	}
	return &LocalSource{
		dir:    dir,
		logger: log.WithComponent("source").With().Str("backend", string(types.DatabaseLocal)).Logger(),
	}
}

// Name returns the backend name
func (s *LocalSource) Name() string {
	return string(types.DatabaseLocal)
}

// Dir returns the record directory
func (s *LocalSource) Dir() string {
	return s.dir
}

// Enumerate reads every matching file in lexical name order. Files whose
// names do not match are ignored; a matching file that is unreadable or
// not a single JSON object fails the enumeration.
func (s *LocalSource) Enumerate(ctx context.Context) ([]types.Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, types.SourceErrorf("list", fmt.Errorf("reading %s: %w", s.dir, err))
	}

	var records []types.Record
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return records, types.SourceErrorf("list", err)
		}
		if entry.IsDir() || !IsRawFileName(entry.Name()) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		rec, err := readRecord(path)
		if err != nil {
			return records, types.SourceErrorf("read", fmt.Errorf("%s: %w", path, err))
		}
		records = append(records, rec)
	}

	s.logger.Debug().Str("dir", s.dir).Int("count", len(records)).Msg("listed local records")
	return records, nil
}

func readRecord(path string) (types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeRecord(data)
}

// decodeRecord parses exactly one JSON object, keeping numbers as
// json.Number.
func decodeRecord(data []byte) (types.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec types.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("invalid JSON: expected an object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON: trailing data after object")
	}
	return rec, nil
}
