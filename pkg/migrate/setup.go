package migrate

import (
	"fmt"
	"io"

	"github.com/cuemby/imgbackfill/pkg/archive"
	"github.com/cuemby/imgbackfill/pkg/config"
	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/moray"
	"github.com/cuemby/imgbackfill/pkg/source"
	"github.com/cuemby/imgbackfill/pkg/types"
	"google.golang.org/grpc"
)

// Options tune NewFromConfig.
type Options struct {
	// DialOptions are appended to the record store client options.
	DialOptions []grpc.DialOption
	// AccountLookup replaces the passwd lookup of the unprivileged account.
	AccountLookup archive.LookupFunc
}

// NewFromConfig validates cfg and builds a Migrator for the configured
// backend and archive. The account cache for restricted ownership is
// created here and lives as long as the Migrator.
func NewFromConfig(cfg *config.Config, opts Options) (*Migrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	var src source.Source
	switch backend {
	case types.DatabaseMoray:
		client, err := moray.NewClient(cfg.MorayClientConfig(), opts.DialOptions...)
		if err != nil {
			return nil, types.SourceErrorf("connect", err)
		}
		closers = append(closers, client)
		src = source.NewMoraySource(client, cfg.Moray.Bucket, source.DefaultFilter)
	case types.DatabaseLocal:
		src = source.NewLocalSource(cfg.Database.Dir)
	default:
		return nil, fmt.Errorf("unhandled database type %s", backend)
	}

	var owner *archive.AccountCache
	if cfg.OwnershipRestricted() {
		if opts.AccountLookup != nil {
			owner = archive.NewAccountCacheWithLookup(archive.DefaultAccountName, opts.AccountLookup)
		} else {
			owner = archive.NewAccountCache(archive.DefaultAccountName)
		}
	}

	w := archive.NewWriter(archive.Config{
		Root:  cfg.Storage.Local.ArchiveDir,
		Owner: owner,
	})

	m := New(src, w)
	m.closers = closers
	m.logger = log.WithBackend(string(backend)).With().Str("component", "migrate").Logger()
	return m, nil
}
