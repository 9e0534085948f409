//go:build protogen

package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotsync/slotsync/libs/grpcx"
	businessv1 "github.com/slotsync/slotsync/protos/gen/business/v1"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// grpcProvider asks the business service for the live booking policy and
// keeps service policies on the local projection, which the booking
// service owns.
type grpcProvider struct {
	client businessv1.BusinessServiceClient
	local  Provider
}

func NewProvider(logger *slog.Logger, local Provider, addr string) (Provider, error) {
	if addr == "" {
		return local, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpcx.Dial(ctx, addr, grpcx.DialOptions{Timeout: 5 * time.Second})
	if err != nil {
		logger.Warn("grpc policy provider unavailable, using local projection", "err", err)
		return local, nil
	}

	logger.Info("grpc policy provider enabled", "addr", addr)
	return &grpcProvider{client: businessv1.NewBusinessServiceClient(conn), local: local}, nil
}

func (p *grpcProvider) BusinessPolicy(ctx context.Context, businessID string) (model.BusinessPolicy, error) {
	resp, err := p.client.GetBookingPolicy(ctx, &businessv1.BookingPolicyRequest{BusinessId: businessID})
	if err != nil {
		return p.local.BusinessPolicy(ctx, businessID)
	}
	pol := model.DefaultBusinessPolicy(businessID)
	if tz := resp.GetTimezone(); tz != "" {
		pol.Timezone = tz
	}
	if v := resp.GetMinAdvanceHours(); v > 0 {
		pol.MinAdvanceHours = int(v)
	}
	if v := resp.GetMaxAdvanceDays(); v > 0 {
		pol.MaxAdvanceDays = int(v)
	}
	if v := resp.GetCancellationHours(); v > 0 {
		pol.CancellationHours = int(v)
	}
	if v := resp.GetSlotGranularityMins(); v > 0 {
		pol.SlotGranularityMins = int(v)
	}
	pol.AutoConfirm = resp.GetAutoConfirm()
	return pol, nil
}

func (p *grpcProvider) ServicePolicy(ctx context.Context, serviceID string) (model.ServicePolicy, error) {
	return p.local.ServicePolicy(ctx, serviceID)
}
