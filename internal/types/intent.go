package types

type IntentType string

const (
	IntentTripPlanning    IntentType = "trip_planning"
	IntentDealSearch      IntentType = "deal_search"
	IntentBooking         IntentType = "booking"
	IntentTripManagement  IntentType = "trip_management"
	IntentWidgetCurrency  IntentType = "widget_currency"
	IntentWidgetWeather   IntentType = "widget_weather"
	IntentWidgetPacking   IntentType = "widget_packing"
	IntentWidgetEmergency IntentType = "widget_emergency"
	IntentWidgetPhrases   IntentType = "widget_phrases"
	IntentChat            IntentType = "chat"
)

// AllIntents is the label set offered to the model classifier.
var AllIntents = []IntentType{
	IntentTripPlanning,
	IntentDealSearch,
	IntentBooking,
	IntentTripManagement,
	IntentWidgetCurrency,
	IntentWidgetWeather,
	IntentWidgetPacking,
	IntentWidgetEmergency,
	IntentWidgetPhrases,
	IntentChat,
}

func (i IntentType) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

func (i IntentType) IsWidget() bool {
	switch i {
	case IntentWidgetCurrency, IntentWidgetWeather, IntentWidgetPacking, IntentWidgetEmergency, IntentWidgetPhrases:
		return true
	}
	return false
}
