package moray

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DefaultConnectTimeout = 200 * time.Millisecond
	DefaultMinRetry       = 1 * time.Second
	DefaultMaxRetry       = 16 * time.Second
)

// RetryPolicy controls reconnect backoff. Retries are unbounded.
type RetryPolicy struct {
	MinTimeout time.Duration
	MaxTimeout time.Duration
}

// ClientConfig configures a record store client.
type ClientConfig struct {
	// Address is the gRPC target, e.g. "passthrough:///10.99.99.17:2020".
	Address        string
	ConnectTimeout time.Duration

	// Retry enables reconnect with backoff. When nil, Connect and
	// FindObjects fail as soon as the connection cannot be established.
	Retry *RetryPolicy
}

// Address joins host and port into a dial target. The passthrough
// scheme hands the address to the dialer unresolved, so host names are
// looked up again on every reconnect.
func Address(host string, port int) string {
	return "passthrough:///" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Client is a record store client. The underlying grpc.ClientConn owns
// reconnects; callers only see a ready connection or an error.
type Client struct {
	conn   *grpc.ClientConn
	retry  bool
	logger zerolog.Logger
}

// NewClient creates a client for cfg.Address. The connection is
// established lazily; call Connect to wait for it.
func NewClient(cfg ClientConfig, opts ...grpc.DialOption) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("record store address is required")
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}

	bo := backoff.DefaultConfig
	if cfg.Retry != nil {
		if cfg.Retry.MinTimeout > 0 {
			bo.BaseDelay = cfg.Retry.MinTimeout
		}
		if cfg.Retry.MaxTimeout > 0 {
			bo.MaxDelay = cfg.Retry.MaxTimeout
		}
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           bo,
			MinConnectTimeout: connectTimeout,
		}),
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create record store client: %w", err)
	}

	return &Client{
		conn:   conn,
		retry:  cfg.Retry != nil,
		logger: log.WithComponent("moray").With().Str("address", cfg.Address).Logger(),
	}, nil
}

// Connect blocks until the connection is ready. With retry enabled it
// waits through transient failures until ctx is done; without retry the
// first failure is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.conn.Connect()
	for {
		state := c.conn.GetState()
		switch state {
		case connectivity.Ready:
			c.logger.Debug().Msg("connected")
			return nil
		case connectivity.TransientFailure:
			if !c.retry {
				return fmt.Errorf("record store unreachable")
			}
			c.logger.Warn().Msg("connection failed, retrying")
		case connectivity.Shutdown:
			return fmt.Errorf("record store client closed")
		}
		if !c.conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("waiting for record store connection: %w", ctx.Err())
		}
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// FindObjects starts a search of bucket and returns the result stream.
func (c *Client) FindObjects(ctx context.Context, bucket, filter string) (*RecordStream, error) {
	req, err := newFindObjectsRequest(bucket, filter)
	if err != nil {
		return nil, err
	}

	stream, err := c.conn.NewStream(ctx, &findObjectsDesc, findObjectsMethod, grpc.WaitForReady(c.retry))
	if err != nil {
		return nil, fmt.Errorf("findObjects %s: %w", bucket, err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("findObjects %s: %w", bucket, err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("findObjects %s: %w", bucket, err)
	}

	return &RecordStream{stream: stream}, nil
}

// RecordStream delivers FindObjects results one at a time. Next returns
// io.EOF at end of stream; after any error, every further call returns
// the same error.
type RecordStream struct {
	stream grpc.ClientStream
	err    error
}

// Next returns the next object.
func (s *RecordStream) Next() (ObjectRecord, error) {
	if s.err != nil {
		return ObjectRecord{}, s.err
	}

	msg := new(structpb.Struct)
	if err := s.stream.RecvMsg(msg); err != nil {
		if !errors.Is(err, io.EOF) {
			err = fmt.Errorf("findObjects: %w", err)
		}
		s.err = err
		return ObjectRecord{}, err
	}

	obj, err := objectFromStruct(msg)
	if err != nil {
		s.err = err
		return ObjectRecord{}, err
	}
	return obj, nil
}
