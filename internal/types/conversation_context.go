package types

import "time"

// ConversationState is the coarse per-user state tracked on the messaging channel.
type ConversationState string

const (
	ConversationIdle           ConversationState = "idle"
	ConversationTripPlanning   ConversationState = "trip_planning"
	ConversationDealSearch     ConversationState = "deal_search"
	ConversationBooking        ConversationState = "booking"
	ConversationTripManagement ConversationState = "trip_management"
	ConversationWidget         ConversationState = "widget"
	ConversationChat           ConversationState = "chat"
)

const MaxStateHistory = 5

type StateTransition struct {
	From ConversationState `json:"from"`
	To   ConversationState `json:"to"`
	At   time.Time         `json:"at"`
}

type ConversationContext struct {
	PhoneNumber  string            `json:"phoneNumber"`
	ProfileName  string            `json:"profileName,omitempty"`
	CurrentState ConversationState `json:"currentState"`
	ContextData  map[string]string `json:"contextData"`
	StateHistory []StateTransition `json:"stateHistory"`
	LastActivity time.Time         `json:"lastActivity"`
}

// ChatMessage is the vendor-neutral {role, content} message shape.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
