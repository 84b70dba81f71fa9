package tripPlanning

import (
	"regexp"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

var (
	confirmPattern   = regexp.MustCompile(`(?i)\b(yes|yep|yeah|confirm(ed)?|create (the |my )?trip)\b`)
	proceedPattern   = regexp.MustCompile(`(?i)\b(next|continue|looks good|move on|proceed|skip( it)?|that's all|done)\b`)
	itineraryPattern = regexp.MustCompile(`(?i)\b((generate|create|build|make|plan)( me)?( an?| the| my)? (day[- ]by[- ]day )?itinerary|plan (my|the) days)\b`)
	budgetMention    = regexp.MustCompile(`(?i)\bbudget\b`)
)

// fieldRoutes map a mentioned field back to its stage when a user revises a recap.
// Bucket list is checked before budget so "bucket list" never routes to BUDGET.
var fieldRoutes = []struct {
	stage   types.PlanningStage
	pattern *regexp.Regexp
}{
	{types.StageBucketList, regexp.MustCompile(`(?i)\b(bucket ?list|wish ?list)\b`)},
	{types.StageBudget, regexp.MustCompile(`(?i)\b(budget|cost|price|spend|money)\b`)},
	{types.StageDestination, regexp.MustCompile(`(?i)\b(destinations?|places?|cit(y|ies)|where)\b`)},
	{types.StageDates, regexp.MustCompile(`(?i)\b(dates?|when|start(ing)?|month)\b`)},
	{types.StageDuration, regexp.MustCompile(`(?i)\b(duration|days|nights|how long|longer|shorter)\b`)},
	{types.StageGroupType, regexp.MustCompile(`(?i)\b(group|travell?ers|people|solo|couple|family|friends)\b`)},
	{types.StageTripPurpose, regexp.MustCompile(`(?i)\b(purpose|reason|kind of trip|type of trip)\b`)},
}

// DetermineStage returns the stage of the first unmet required field. Once every field is
// filled, CONFIRM is sticky, BUDGET moves to BUCKET_LIST, BUCKET_LIST moves to CONFIRM and any
// other stage (a pre-populated config) jumps straight to BUCKET_LIST.
func DetermineStage(cfg types.TripConfig, current types.PlanningStage) types.PlanningStage {
	switch {
	case len(cfg.Destinations) == 0:
		return types.StageDestination
	case !cfg.HasStartDate():
		return types.StageDates
	case cfg.Duration.Days <= 0:
		return types.StageDuration
	case cfg.GroupType == "":
		return types.StageGroupType
	case cfg.TripPurpose == "":
		return types.StageTripPurpose
	case cfg.Budget <= 0:
		return types.StageBudget
	}

	switch current {
	case types.StageConfirm:
		return types.StageConfirm
	case types.StageBucketList:
		return types.StageConfirm
	default:
		return types.StageBucketList
	}
}

func routeByField(message string) (types.PlanningStage, bool) {
	for _, r := range fieldRoutes {
		if r.pattern.MatchString(message) {
			return r.stage, true
		}
	}
	return "", false
}

// IsConfirmation reports whether the message explicitly accepts the trip.
func IsConfirmation(message string) bool {
	return confirmPattern.MatchString(message)
}
