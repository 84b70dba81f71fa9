package types

import (
	"strings"

	"github.com/google/uuid"
)

// PlanningStage is one step of the fixed trip-planning sequence.
type PlanningStage string

const (
	StageInit        PlanningStage = "INIT"
	StageDestination PlanningStage = "DESTINATION"
	StageDates       PlanningStage = "DATES"
	StageDuration    PlanningStage = "DURATION"
	StageGroupType   PlanningStage = "GROUP_TYPE"
	StageTripPurpose PlanningStage = "TRIP_PURPOSE"
	StageBudget      PlanningStage = "BUDGET"
	StageBucketList  PlanningStage = "BUCKET_LIST"
	StageConfirm     PlanningStage = "CONFIRM"
)

var stageOrder = map[PlanningStage]int{
	StageInit:        0,
	StageDestination: 1,
	StageDates:       2,
	StageDuration:    3,
	StageGroupType:   4,
	StageTripPurpose: 5,
	StageBudget:      6,
	StageBucketList:  7,
	StageConfirm:     8,
}

// Order returns the position of the stage in the planning sequence, -1 if unknown.
func (s PlanningStage) Order() int {
	if o, ok := stageOrder[s]; ok {
		return o
	}
	return -1
}

func (s PlanningStage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

type GroupType string

const (
	GroupSolo     GroupType = "solo"
	GroupCouple   GroupType = "couple"
	GroupFamily   GroupType = "family"
	GroupFriends  GroupType = "friends"
	GroupBusiness GroupType = "business"
)

var groupTypeAliases = map[string]GroupType{
	"solo":       GroupSolo,
	"alone":      GroupSolo,
	"myself":     GroupSolo,
	"couple":     GroupCouple,
	"partner":    GroupCouple,
	"honeymoon":  GroupCouple,
	"family":     GroupFamily,
	"kids":       GroupFamily,
	"friends":    GroupFriends,
	"group":      GroupFriends,
	"business":   GroupBusiness,
	"colleagues": GroupBusiness,
	"work":       GroupBusiness,
}

// ParseGroupType maps free text onto a GroupType; ok is false for anything unrecognised.
func ParseGroupType(s string) (GroupType, bool) {
	g, ok := groupTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return g, ok
}

type TripPurpose string

const (
	PurposeLeisure    TripPurpose = "leisure"
	PurposeAdventure  TripPurpose = "adventure"
	PurposeCultural   TripPurpose = "cultural"
	PurposeRomantic   TripPurpose = "romantic"
	PurposeBusiness   TripPurpose = "business"
	PurposeSpiritual  TripPurpose = "spiritual"
	PurposeRelaxation TripPurpose = "relaxation"
)

var tripPurposeAliases = map[string]TripPurpose{
	"leisure":     PurposeLeisure,
	"vacation":    PurposeLeisure,
	"holiday":     PurposeLeisure,
	"sightseeing": PurposeLeisure,
	"adventure":   PurposeAdventure,
	"trekking":    PurposeAdventure,
	"cultural":    PurposeCultural,
	"culture":     PurposeCultural,
	"heritage":    PurposeCultural,
	"romantic":    PurposeRomantic,
	"honeymoon":   PurposeRomantic,
	"business":    PurposeBusiness,
	"work":        PurposeBusiness,
	"spiritual":   PurposeSpiritual,
	"pilgrimage":  PurposeSpiritual,
	"relaxation":  PurposeRelaxation,
	"relax":       PurposeRelaxation,
	"wellness":    PurposeRelaxation,
}

// ParseTripPurpose maps free text onto a TripPurpose; ok is false for anything unrecognised.
func ParseTripPurpose(s string) (TripPurpose, bool) {
	p, ok := tripPurposeAliases[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

type TripDuration struct {
	Days   int `json:"days"`
	Nights int `json:"nights"`
}

// TripConfig is the structured trip being filled slot by slot.
type TripConfig struct {
	TripName     string            `json:"tripName"`
	Destinations []string          `json:"destinations"`
	StartDate    *string           `json:"startDate"`
	Duration     TripDuration      `json:"duration"`
	GroupType    GroupType         `json:"groupType"`
	TripPurpose  TripPurpose       `json:"tripPurpose"`
	Budget       float64           `json:"budget"`
	BucketList   BucketListDetails `json:"bucketList"`
}

// Clone returns a deep copy so extraction can never mutate the caller's config.
func (c TripConfig) Clone() TripConfig {
	out := c
	if c.Destinations != nil {
		out.Destinations = append([]string(nil), c.Destinations...)
	}
	if c.StartDate != nil {
		sd := *c.StartDate
		out.StartDate = &sd
	}
	out.BucketList = c.BucketList.Clone()
	return out
}

func (c TripConfig) HasStartDate() bool {
	return c.StartDate != nil && strings.TrimSpace(*c.StartDate) != ""
}

// PlanningState round-trips with the conversation between turns.
type PlanningState struct {
	Stage          PlanningStage `json:"stage"`
	TripConfig     TripConfig    `json:"tripConfig"`
	ExistingTripID *uuid.UUID    `json:"existingTripId,omitempty"`
	UserID         string        `json:"userId"`
	Confirmed      bool          `json:"confirmed"`
	Persisted      bool          `json:"persisted"`
}

func NewPlanningState(userID string) PlanningState {
	return PlanningState{
		Stage:      StageInit,
		UserID:     userID,
		TripConfig: TripConfig{Destinations: []string{}},
	}
}

func (s PlanningState) Clone() PlanningState {
	out := s
	out.TripConfig = s.TripConfig.Clone()
	if s.ExistingTripID != nil {
		id := *s.ExistingTripID
		out.ExistingTripID = &id
	}
	return out
}

// ReadyToPersist is true exactly when a confirmation event has not been saved yet.
func (s PlanningState) ReadyToPersist() bool {
	return s.Stage == StageConfirm && s.Confirmed && !s.Persisted
}
