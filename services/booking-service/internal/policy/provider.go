// Package policy resolves business and service booking configuration. The
// default provider reads the local projection; builds with generated protos
// can resolve business policy live from the business service instead.
package policy

import (
	"context"

	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

type Provider interface {
	BusinessPolicy(ctx context.Context, businessID string) (model.BusinessPolicy, error)
	ServicePolicy(ctx context.Context, serviceID string) (model.ServicePolicy, error)
}
