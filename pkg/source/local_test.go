package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	uuidA = "47e6af92-daf0-11e0-ac11-473ca1173ab0"
	uuidB = "91ba0e64-2547-11e2-a972-df579e5fddb3"
	uuidC = "c58161c0-2547-11e2-a75e-9fdca1940570"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestIsRawFileName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{uuidA + ".raw", true},
		{uuidA + ".json", false},
		{uuidA, false},
		{"47E6AF92-DAF0-11E0-AC11-473CA1173AB0.raw", false},
		{"3dae5131.raw", false},
		{"x" + uuidA + ".raw", false},
		{uuidA + ".raw.bak", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRawFileName(tt.name), tt.name)
	}
}

func TestLocalSourceEnumerate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, uuidB+".raw", `{"uuid":"`+uuidB+`","image_size":"5368709120"}`)
	writeFile(t, dir, uuidA+".raw", `{"uuid":"`+uuidA+`","activated":"true","files":[{"size":1234}]}`)
	writeFile(t, dir, "README", "not a record")
	writeFile(t, dir, uuidC+".json", "{not even json")
	require.NoError(t, os.Mkdir(filepath.Join(dir, uuidC+".raw"), 0755))

	src := NewLocalSource(dir)
	assert.Equal(t, "local", src.Name())

	records, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, uuidA, records[0].UUID())
	assert.Equal(t, "true", records[0]["activated"])
	files := records[0]["files"].([]interface{})
	assert.Equal(t, json.Number("1234"), files[0].(map[string]interface{})["size"])
	assert.Equal(t, uuidB, records[1].UUID())
	assert.Equal(t, "5368709120", records[1]["image_size"])
}

func TestLocalSourceEmptyDir(t *testing.T) {
	records, err := NewLocalSource(t.TempDir()).Enumerate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLocalSourceMissingDir(t *testing.T) {
	_, err := NewLocalSource(filepath.Join(t.TempDir(), "missing")).Enumerate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSource))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalSourceInvalidJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax error", `{"uuid":`},
		{"not an object", `["a"]`},
		{"null", `null`},
		{"trailing data", `{"uuid":"x"} {"uuid":"y"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, uuidA+".raw", `{"uuid":"`+uuidA+`"}`)
			writeFile(t, dir, uuidB+".raw", tt.content)
			writeFile(t, dir, uuidC+".raw", `{"uuid":"`+uuidC+`"}`)

			records, err := NewLocalSource(dir).Enumerate(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrSource))
			assert.Contains(t, err.Error(), uuidB+".raw")
			require.Len(t, records, 1, "records before the failure are kept")
			assert.Equal(t, uuidA, records[0].UUID())
		})
	}
}

func TestLocalSourceCanceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, uuidA+".raw", `{"uuid":"`+uuidA+`"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalSource(dir).Enumerate(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewLocalSourceDefaultDir(t *testing.T) {
	assert.Equal(t, DefaultLocalDir, NewLocalSource("").Dir())
}
