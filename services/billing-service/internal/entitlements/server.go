//go:build protogen

package entitlements

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"google.golang.org/grpc"

	entitlementsv1 "github.com/slotsync/slotsync/protos/gen/entitlements/v1"
	"github.com/slotsync/slotsync/services/billing-service/internal/storage"
)

type server struct {
	entitlementsv1.UnimplementedEntitlementsServiceServer
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, repo *storage.Repository) {
	entitlementsv1.RegisterEntitlementsServiceServer(grpcServer, &server{repo: repo})
}

func (s *server) GetEntitlements(ctx context.Context, req *entitlementsv1.EntitlementsRequest) (*entitlementsv1.EntitlementsResponse, error) {
	// Businesses without a subscription row run on the default plan.
	limits := LimitsForTier("starter")
	active := true
	if s.repo != nil && req.GetBusinessId() != "" {
		sub, err := s.repo.GetSubscription(ctx, req.GetBusinessId())
		switch {
		case err == nil:
			limits = LimitsForTier(sub.Tier)
			active = sub.Status == "active"
		case !errors.Is(err, pgx.ErrNoRows):
			// Repo errors keep the stable default rather than failing the call.
		}
	}
	return &entitlementsv1.EntitlementsResponse{
		Tier:               limits.Tier,
		MaxProfessionals:   uint32(limits.MaxProfessionals),
		MaxMonthlyBookings: uint32(limits.MaxMonthlyBookings),
		Active:             active,
	}, nil
}
