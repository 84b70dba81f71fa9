package tripPlanning

import (
	"fmt"
	"strings"
	"time"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const extractionSchema = `{
  "tripName": string | null,
  "destinations": string[],
  "startDate": "YYYY-MM-DD" | null,
  "duration": {"days": number | null, "nights": number | null},
  "groupType": "solo" | "couple" | "family" | "friends" | "business" | null,
  "tripPurpose": "leisure" | "adventure" | "cultural" | "romantic" | "business" | "spiritual" | "relaxation" | null,
  "budget": number | null,
  "isAdding": boolean
}`

func extractionSystemPrompt(adding bool, now time.Time) string {
	var b strings.Builder
	b.WriteString("You extract trip planning details from a traveller's message.\n")
	fmt.Fprintf(&b, "Today is %s. Resolve relative dates against it.\n", now.Format("2006-01-02"))
	b.WriteString("Return ONLY a JSON object with this shape:\n")
	b.WriteString(extractionSchema)
	b.WriteString("\nOnly fill fields the message actually mentions; use null or [] for everything else.\n")
	if adding {
		b.WriteString("The traveller is adding to an existing trip. Put ONLY the new destinations in \"destinations\" and set \"isAdding\" to true.\n")
	} else {
		b.WriteString("If the message names destinations, return the COMPLETE list the traveller wants and set \"isAdding\" to false.\n")
	}
	b.WriteString("Budget is a plain total number without currency symbols.")
	return b.String()
}

func extractionUserPrompt(message string, cfg types.TripConfig) string {
	return fmt.Sprintf("Current trip:\n%s\n\nMessage:\n%s", ConfigSummary(cfg), message)
}

// ConfigSummary renders the filled slots of a config, one per line.
func ConfigSummary(cfg types.TripConfig) string {
	var lines []string
	if cfg.TripName != "" {
		lines = append(lines, "Trip name: "+cfg.TripName)
	}
	if len(cfg.Destinations) > 0 {
		lines = append(lines, "Destinations: "+strings.Join(cfg.Destinations, ", "))
	}
	if cfg.HasStartDate() {
		lines = append(lines, "Start date: "+*cfg.StartDate)
	}
	if cfg.Duration.Days > 0 {
		lines = append(lines, fmt.Sprintf("Duration: %d days / %d nights", cfg.Duration.Days, cfg.Duration.Nights))
	}
	if cfg.GroupType != "" {
		lines = append(lines, "Travelling as: "+string(cfg.GroupType))
	}
	if cfg.TripPurpose != "" {
		lines = append(lines, "Purpose: "+string(cfg.TripPurpose))
	}
	if cfg.Budget > 0 {
		lines = append(lines, fmt.Sprintf("Budget: %.0f", cfg.Budget))
	}
	if len(lines) == 0 {
		return "(nothing yet)"
	}
	return strings.Join(lines, "\n")
}

var stageQuestions = map[types.PlanningStage]string{
	types.StageInit:        "Greet the traveller and ask where they would like to go.",
	types.StageDestination: "Ask which destinations they want to visit. Suggest two or three ideas if they seem unsure.",
	types.StageDates:       "Ask when they plan to start the trip. A month is fine if they do not know the exact date.",
	types.StageDuration:    "Ask how many days the trip should last.",
	types.StageGroupType:   "Ask who is travelling: solo, as a couple, with family, with friends or for business.",
	types.StageTripPurpose: "Ask what kind of trip this is, for example leisure, adventure, cultural, romantic, spiritual or relaxation.",
	types.StageBudget:      "Ask for their total budget. Mention they can also describe it, like \"luxury\" or \"budget friendly\".",
}

const plannerPersona = `You are a friendly travel planner helping a traveller build a trip one step at a time.
Keep replies short and conversational. Ask exactly one question per reply. Never invent details the traveller has not given.`

// BuildStagePrompt returns the system prompt for the next reply in a planning conversation.
func BuildStagePrompt(state types.PlanningState) string {
	var b strings.Builder
	b.WriteString(plannerPersona)
	b.WriteString("\n\nWhat we know so far:\n")
	b.WriteString(ConfigSummary(state.TripConfig))
	b.WriteString("\n\n")

	switch state.Stage {
	case types.StageBucketList:
		b.WriteString(bucketListSection(state.TripConfig.BucketList))
		b.WriteString("\nAsk whether they want to include any of these, then say they can reply \"next\" to review the trip.")
	case types.StageConfirm:
		b.WriteString("Trip recap:\n")
		b.WriteString(ConfigSummary(state.TripConfig))
		if n := state.TripConfig.BucketList.TotalItems; n > 0 {
			fmt.Fprintf(&b, "\nBucket list items along the way: %d", n)
		}
		if state.Confirmed {
			b.WriteString("\n\nThe traveller has confirmed. Tell them the trip is saved and offer to build a day-by-day itinerary.")
		} else {
			b.WriteString("\n\nPresent the recap and ask them to confirm, or tell you what to change.")
		}
	default:
		q, ok := stageQuestions[state.Stage]
		if !ok {
			q = stageQuestions[types.StageInit]
		}
		b.WriteString(q)
	}
	return b.String()
}

func bucketListSection(details types.BucketListDetails) string {
	if details.TotalItems == 0 {
		return "The traveller has no saved bucket list items for these destinations. Mention they can add some later."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The traveller saved %d bucket list items for these destinations:\n", details.TotalItems)
	for _, it := range details.Items {
		place := it.Place.MainText
		if place == "" {
			place = it.CountryName
		}
		fmt.Fprintf(&b, "- %s (%s, %s)\n", it.ActivityName, place, it.ActivityType)
	}
	return b.String()
}
