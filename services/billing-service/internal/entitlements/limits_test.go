package entitlements

import "testing"

func TestLimitsForTier(t *testing.T) {
	starter := LimitsForTier("starter")
	if starter.MaxProfessionals != 1 || starter.MaxMonthlyBookings != 50 {
		t.Fatalf("unexpected starter limits: %+v", starter)
	}

	pro := LimitsForTier("professional")
	if pro.MaxProfessionals != 5 {
		t.Fatalf("unexpected professional limits: %+v", pro)
	}
	if pro.MaxMonthlyBookings != 0 {
		t.Fatalf("professional bookings should be unlimited, got %d", pro.MaxMonthlyBookings)
	}

	ent := LimitsForTier("enterprise")
	if ent.MaxProfessionals != 0 || ent.MaxMonthlyBookings != 0 {
		t.Fatalf("enterprise should be unlimited: %+v", ent)
	}

	// Unknown tiers fall back to the most restrictive plan.
	if got := LimitsForTier("platinum"); got.Tier != "starter" {
		t.Fatalf("unknown tier resolved to %q, want starter", got.Tier)
	}
}
