//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/slotsync/slotsync/libs/db"
)

// The entitlements gRPC surface needs the generated proto stubs. Builds
// without the protogen tag serve HTTP and kafka only.
func startGrpcServer(_ context.Context, logger *slog.Logger, _ *db.Pool) error {
	logger.Info("grpc server disabled (build without protogen tag)")
	return nil
}
