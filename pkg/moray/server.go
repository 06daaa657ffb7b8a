package moray

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/cuemby/imgbackfill/pkg/log"
	"github.com/cuemby/imgbackfill/pkg/storage"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server serves the record store service from a BoltStore
type Server struct {
	store  *storage.BoltStore
	grpc   *grpc.Server
	health *health.Server
	logger zerolog.Logger
}

// NewServer creates a new record store server
func NewServer(store *storage.BoltStore) *Server {
	logger := log.WithComponent("recordstore")
	s := &Server{
		store:  store,
		grpc:   grpc.NewServer(grpc.ChainStreamInterceptor(LoggingStreamInterceptor(logger))),
		health: health.NewServer(),
		logger: logger,
	}
	RegisterRecordStoreServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Start listens on addr and serves until Stop is called
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %v", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("record store listening")
	return s.grpc.Serve(lis)
}

// Stop marks the service NOT_SERVING and gracefully stops the gRPC server
func (s *Server) Stop() {
	s.health.Shutdown()
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}

// FindObjects streams every object in bucket that matches filter.
func (s *Server) FindObjects(ctx context.Context, bucket, filter string, send func(ObjectRecord) error) error {
	if bucket == "" {
		return status.Error(codes.InvalidArgument, "bucket is required")
	}
	f, err := ParseFilter(filter)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
	}
	s.logger.Debug().Str("bucket", bucket).Str("filter", f.String()).Msg("findObjects")

	err = s.store.ForEachObject(bucket, func(key string, value map[string]interface{}) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !f.Match(value) {
			return nil
		}
		return send(ObjectRecord{Bucket: bucket, Key: key, Value: value})
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrBucketNotFound):
		return status.Errorf(codes.NotFound, "bucket %s does not exist", bucket)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Errorf(codes.Internal, "findObjects %s: %v", bucket, err)
	}
}
