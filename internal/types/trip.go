package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

const (
	TripTypeSelfPlanned = "self-planned"
	TripStatusPlanning  = "planning"
)

type TripDestination struct {
	Location string `json:"location"`
}

type TripBudget struct {
	Currency    string  `json:"currency"`
	TotalBudget float64 `json:"totalBudget"`
}

// Trip is the persisted shape created on confirmation.
type Trip struct {
	ID           uuid.UUID         `json:"id"`
	UserID       string            `json:"userId"`
	TripName     string            `json:"tripName"`
	StartDate    *string           `json:"startDate"`
	Duration     TripDuration      `json:"duration"`
	TripType     string            `json:"tripType"`
	Status       string            `json:"status"`
	GroupType    GroupType         `json:"groupType"`
	TripPurpose  TripPurpose       `json:"tripPurpose"`
	Destinations []TripDestination `json:"destinations"`
	Budget       TripBudget        `json:"budget"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}
