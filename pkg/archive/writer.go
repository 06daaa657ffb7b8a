package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultArchiveDir is the archive root used when none is configured
	DefaultArchiveDir = "/data/imgapi/archive"

	// ShardPrefixLen is the number of uuid characters used as the shard directory
	ShardPrefixLen = 3

	dirMode  os.FileMode = 0755
	fileMode os.FileMode = 0644
)

// Config configures a Writer.
type Config struct {
	// Root is the archive root directory.
	Root string

	// Owner, when set, restricts ownership of every written entry and its
	// shard directory to the resolved account.
	Owner *AccountCache
}

// Writer persists canonical manifests as archive entries at
// <root>/<uuid[0:3]>/<uuid>.json.
type Writer struct {
	root   string
	owner  *AccountCache
	chown  func(name string, uid, gid int) error
	logger zerolog.Logger
}

// NewWriter creates an archive writer
func NewWriter(cfg Config) *Writer {
	root := cfg.Root
	if root == "" {
		root = DefaultArchiveDir
	}
	return &Writer{
		root:   root,
		owner:  cfg.Owner,
		chown:  os.Chown,
		logger: log.WithComponent("archive"),
	}
}

// Root returns the archive root directory.
func (w *Writer) Root() string {
	return w.root
}

// PathFor returns the archive entry path for an image uuid.
func (w *Writer) PathFor(id string) (string, error) {
	return EntryPath(w.root, id)
}

// EntryPath returns <root>/<id[0:3]>/<id>.json. id must be a UUID in its
// canonical 36 character form.
func EntryPath(root, id string) (string, error) {
	if len(id) != 36 {
		return "", fmt.Errorf("invalid image uuid %q: expected canonical form", id)
	}
	if err := uuid.Validate(id); err != nil {
		return "", fmt.Errorf("invalid image uuid %q: %w", id, err)
	}
	return filepath.Join(root, id[:ShardPrefixLen], id+".json"), nil
}

// Write stores m as the archive entry for id, replacing any previous
// entry. The content is written to a temporary file in the shard
// directory and renamed into place, so a failed write never leaves a
// truncated entry behind.
func (w *Writer) Write(id string, m types.Manifest) error {
	entryPath, err := w.PathFor(id)
	if err != nil {
		return types.WriteErrorf("path", id, err)
	}
	shardDir := filepath.Dir(entryPath)

	content, err := Encode(m)
	if err != nil {
		return types.WriteErrorf("encode", id, err)
	}

	if err := os.MkdirAll(shardDir, dirMode); err != nil {
		return types.WriteErrorf("mkdir", id, err)
	}

	if err := os.RemoveAll(entryPath); err != nil {
		return types.WriteErrorf("remove", id, err)
	}

	if err := renameio.WriteFile(entryPath, content, fileMode); err != nil {
		return types.WriteErrorf("write", id, err)
	}

	if w.owner != nil {
		if err := w.applyOwnership(id, entryPath, shardDir); err != nil {
			return err
		}
	}

	w.logger.Debug().
		Str("image_uuid", id).
		Str("path", entryPath).
		Int("bytes", len(content)).
		Msg("archive entry written")
	return nil
}

// applyOwnership chowns the entry and then its shard directory.
func (w *Writer) applyOwnership(id, entryPath, shardDir string) error {
	acct, err := w.owner.Get()
	if err != nil {
		return err
	}
	if err := w.chown(entryPath, acct.UID, acct.GID); err != nil {
		return types.WriteErrorf("chown", id, err)
	}
	if err := w.chown(shardDir, acct.UID, acct.GID); err != nil {
		return types.WriteErrorf("chown", id, err)
	}
	return nil
}
