package source

import (
	"context"

	"github.com/cuemby/imgbackfill/pkg/types"
)

// Source enumerates every image record held by a backend.
//
// Enumerate returns the full record sequence in backend order. On
// failure it returns an ErrSource error together with the records
// delivered before the failure, unchanged.
type Source interface {
	Name() string
	Enumerate(ctx context.Context) ([]types.Record, error)
}
