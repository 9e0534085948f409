package entitlements

// Limits is the entitlement set derived from a subscription tier. The
// booking service enforces these, so the shape has to stay stable. A zero
// limit means unlimited.
type Limits struct {
	Tier               string `json:"tier"`
	MaxProfessionals   int    `json:"max_professionals"`
	MaxMonthlyBookings int    `json:"max_monthly_bookings"`
}

func LimitsForTier(tier string) Limits {
	switch tier {
	case "professional":
		return Limits{
			Tier:               "professional",
			MaxProfessionals:   5,
			MaxMonthlyBookings: 0,
		}
	case "business":
		return Limits{
			Tier:               "business",
			MaxProfessionals:   25,
			MaxMonthlyBookings: 0,
		}
	case "enterprise":
		return Limits{
			Tier:               "enterprise",
			MaxProfessionals:   0,
			MaxMonthlyBookings: 0,
		}
	default:
		return Limits{
			Tier:               "starter",
			MaxProfessionals:   1,
			MaxMonthlyBookings: 50,
		}
	}
}
