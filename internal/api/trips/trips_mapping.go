package trips

import (
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

// TripFromConfig builds the persisted trip for a confirmed planning config.
// existingID is zero for new trips.
func TripFromConfig(cfg types.TripConfig, userID string, existingID uuid.UUID, currency string) *types.Trip {
	dests := make([]types.TripDestination, 0, len(cfg.Destinations))
	for _, d := range cfg.Destinations {
		if d = strings.TrimSpace(d); d != "" {
			dests = append(dests, types.TripDestination{Location: d})
		}
	}
	var startDate *string
	if cfg.HasStartDate() {
		sd := strings.TrimSpace(*cfg.StartDate)
		startDate = &sd
	}
	budget := cfg.Budget
	if budget < 0 {
		budget = 0
	}
	return &types.Trip{
		ID:           existingID,
		UserID:       userID,
		TripName:     cfg.TripName,
		StartDate:    startDate,
		Duration:     cfg.Duration,
		TripType:     types.TripTypeSelfPlanned,
		Status:       types.TripStatusPlanning,
		GroupType:    cfg.GroupType,
		TripPurpose:  cfg.TripPurpose,
		Destinations: dests,
		Budget: types.TripBudget{
			Currency:    currency,
			TotalBudget: budget,
		},
	}
}

// ConfigFromTrip is the inverse of TripFromConfig, used when a stored trip is adopted
// as the base of a new planning conversation. Bucket list matches are not stored.
func ConfigFromTrip(trip *types.Trip) types.TripConfig {
	cfg := types.TripConfig{
		TripName:     trip.TripName,
		Destinations: make([]string, 0, len(trip.Destinations)),
		Duration:     trip.Duration,
		GroupType:    trip.GroupType,
		TripPurpose:  trip.TripPurpose,
		Budget:       trip.Budget.TotalBudget,
	}
	for _, d := range trip.Destinations {
		cfg.Destinations = append(cfg.Destinations, d.Location)
	}
	if trip.StartDate != nil {
		sd := *trip.StartDate
		cfg.StartDate = &sd
	}
	return cfg
}
