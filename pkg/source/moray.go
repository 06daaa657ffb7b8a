package source

import (
	"context"
	"errors"
	"io"

	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/moray"
	"github.com/cuemby/imgbackfill/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultBucket is the record store bucket holding image records
	DefaultBucket = "imgapi_images"
	// DefaultFilter matches every record with a uuid
	DefaultFilter = "uuid=*"
)

// ObjectFinder is the part of the record store client a MoraySource needs.
type ObjectFinder interface {
	Connect(ctx context.Context) error
	FindObjects(ctx context.Context, bucket, filter string) (*moray.RecordStream, error)
}

// MoraySource enumerates image records from the networked record store.
type MoraySource struct {
	client ObjectFinder
	bucket string
	filter string
	logger zerolog.Logger
}

// NewMoraySource creates a source reading bucket with filter. Empty
// values select DefaultBucket and DefaultFilter.
func NewMoraySource(client ObjectFinder, bucket, filter string) *MoraySource {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if filter == "" {
		filter = DefaultFilter
	}
	return &MoraySource{
		client: client,
		bucket: bucket,
		filter: filter,
		logger: log.WithComponent("source").With().Str("backend", string(types.DatabaseMoray)).Logger(),
	}
}

// Name returns the backend name
func (s *MoraySource) Name() string {
	return string(types.DatabaseMoray)
}

// Enumerate waits for the connection, runs the full-scan query and
// collects objects until end of stream. A mid-stream error stops the
// scan; objects received before it are returned with the error.
func (s *MoraySource) Enumerate(ctx context.Context) ([]types.Record, error) {
	if err := s.client.Connect(ctx); err != nil {
		return nil, types.SourceErrorf("connect", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := s.client.FindObjects(ctx, s.bucket, s.filter)
	if err != nil {
		return nil, types.SourceErrorf("findObjects", err)
	}

	var records []types.Record
	for {
		obj, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, types.SourceErrorf("findObjects", err)
		}
		records = append(records, types.Record(obj.Value))
	}

	s.logger.Debug().
		Str("bucket", s.bucket).
		Str("filter", s.filter).
		Int("count", len(records)).
		Msg("listed record store objects")
	return records, nil
}
