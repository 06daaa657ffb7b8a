package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/imgbackfill/pkg/archive"
	"github.com/cuemby/imgbackfill/pkg/source"
	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	uuidA = "47e6af92-daf0-11e0-ac11-473ca1173ab0"
	uuidB = "91ba0e64-2547-11e2-a972-df579e5fddb3"
	uuidC = "c58161c0-2547-11e2-a75e-9fdca1940570"
)

type sliceSource struct {
	records []types.Record
	err     error
	calls   int
}

func (s *sliceSource) Name() string { return "test" }

func (s *sliceSource) Enumerate(context.Context) ([]types.Record, error) {
	s.calls++
	return s.records, s.err
}

type recordingArchiver struct {
	written []string
	failOn  string
}

func (a *recordingArchiver) Write(id string, m types.Manifest) error {
	if id == a.failOn {
		return types.WriteErrorf("write", id, os.ErrPermission)
	}
	a.written = append(a.written, id)
	return nil
}

func TestRunSuccess(t *testing.T) {
	src := &sliceSource{records: []types.Record{{"uuid": uuidA}, {"uuid": uuidB}, {"uuid": uuidC}}}
	arch := &recordingArchiver{}
	m := New(src, arch)
	assert.Equal(t, types.StateIdle, m.State())

	res, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateDone, res.State)
	assert.Equal(t, types.StateDone, m.State())
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, []string{uuidA, uuidB, uuidC}, arch.written)
}

func TestRunEmptySource(t *testing.T) {
	res, err := New(&sliceSource{}, &recordingArchiver{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateDone, res.State)
	assert.Equal(t, 0, res.Processed)
}

func TestRunStopsAtNormalizationError(t *testing.T) {
	src := &sliceSource{records: []types.Record{
		{"uuid": uuidA, "tags": "env=prod"},
		{"uuid": uuidB, "tags": "broken"},
		{"uuid": uuidC},
	}}
	arch := &recordingArchiver{}

	res, err := New(src, arch).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNormalization))
	assert.Contains(t, err.Error(), uuidB)
	assert.Equal(t, types.StateFailed, res.State)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, err, res.Err)
	assert.Equal(t, []string{uuidA}, arch.written)
}

func TestRunStopsAtWriteError(t *testing.T) {
	src := &sliceSource{records: []types.Record{{"uuid": uuidA}, {"uuid": uuidB}, {"uuid": uuidC}}}
	arch := &recordingArchiver{failOn: uuidB}

	res, err := New(src, arch).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrWrite))
	assert.Equal(t, types.StateFailed, res.State)
	assert.Equal(t, []string{uuidA}, arch.written)
}

func TestRunSourceErrorBeforeAnyRecord(t *testing.T) {
	srcErr := types.SourceErrorf("connect", errors.New("no route to host"))
	arch := &recordingArchiver{}

	res, err := New(&sliceSource{err: srcErr}, arch).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSource))
	assert.Equal(t, types.StateFailed, res.State)
	assert.Empty(t, arch.written)
}

func TestRunProcessesRecordsDeliveredBeforeSourceError(t *testing.T) {
	srcErr := types.SourceErrorf("findObjects", errors.New("connection reset"))
	src := &sliceSource{records: []types.Record{{"uuid": uuidA}}, err: srcErr}
	arch := &recordingArchiver{}

	res, err := New(src, arch).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSource))
	assert.Equal(t, types.StateFailed, res.State)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, []string{uuidA}, arch.written)
}

func TestRunOnlyOnce(t *testing.T) {
	src := &sliceSource{}
	m := New(src, &recordingArchiver{})
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	res, err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration already done")
	assert.Equal(t, types.StateDone, res.State)
	assert.Equal(t, 1, src.calls)
}

func TestAllowedTransitions(t *testing.T) {
	assert.True(t, allowed(types.StateIdle, types.StateEnumerating))
	assert.True(t, allowed(types.StateEnumerating, types.StateFailed))
	assert.True(t, allowed(types.StateEnumerating, types.StateProcessing))
	assert.True(t, allowed(types.StateProcessing, types.StateDone))
	assert.True(t, allowed(types.StateProcessing, types.StateFailed))
	assert.False(t, allowed(types.StateIdle, types.StateProcessing))
	assert.False(t, allowed(types.StateEnumerating, types.StateDone))
	assert.False(t, allowed(types.StateDone, types.StateEnumerating))
	assert.False(t, allowed(types.StateFailed, types.StateProcessing))
}

func writeRaw(t *testing.T, dir, id, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".raw"), []byte(content), 0644))
}

func TestLocalFailFast(t *testing.T) {
	dir := t.TempDir()
	root := t.TempDir()
	writeRaw(t, dir, uuidA, `{"uuid":"`+uuidA+`"}`)
	writeRaw(t, dir, uuidB, `{"uuid":`)
	writeRaw(t, dir, uuidC, `{"uuid":"`+uuidC+`"}`)

	m := New(source.NewLocalSource(dir), archive.NewWriter(archive.Config{Root: root}))
	res, err := m.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSource))
	assert.Equal(t, 1, res.Processed)

	assert.FileExists(t, filepath.Join(root, "47e", uuidA+".json"))
	assert.NoFileExists(t, filepath.Join(root, "91b", uuidB+".json"))
	assert.NoFileExists(t, filepath.Join(root, "c58", uuidC+".json"))
}

func TestLocalIdempotent(t *testing.T) {
	dir := t.TempDir()
	root := t.TempDir()
	writeRaw(t, dir, uuidA, `{
		"uuid": "`+uuidA+`",
		"name": "base",
		"activated": "true",
		"disabled": "false",
		"public": true,
		"image_size": "10240",
		"tags": ["env=prod", "env=stage"],
		"files": [{"sha1": "97f2", "size": 1234, "compression": "bzip2", "stor": "local"}]
	}`)

	run := func() []byte {
		m := New(source.NewLocalSource(dir), archive.NewWriter(archive.Config{Root: root}))
		res, err := m.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Processed)
		data, err := os.ReadFile(filepath.Join(root, "47e", uuidA+".json"))
		require.NoError(t, err)
		return data
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Equal(t, `{
  "activated": true,
  "disabled": false,
  "files": [
    {
      "compression": "bzip2",
      "sha1": "97f2",
      "size": 1234
    }
  ],
  "image_size": 10240,
  "name": "base",
  "public": true,
  "tags": {
    "env": "stage"
  },
  "uuid": "47e6af92-daf0-11e0-ac11-473ca1173ab0"
}`, string(first))
}
