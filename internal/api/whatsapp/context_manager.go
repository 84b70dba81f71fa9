package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/go-trip-planner-ai/internal/api/session"
	"github.com/FACorreiaa/go-trip-planner-ai/internal/types"
)

const (
	IdleReset         = 30 * time.Minute
	contextTTL        = 7 * 24 * time.Hour
	contextDataUserID = "userId"
)

// ContextManager keeps the per-phone conversation context.
type ContextManager struct {
	kv     session.KVStore
	logger *slog.Logger
	now    func() time.Time
}

func NewContextManager(kv session.KVStore, logger *slog.Logger) *ContextManager {
	return &ContextManager{kv: kv, logger: logger, now: time.Now}
}

// Load returns the phone's context. fresh is true for a first contact or after IdleReset
// of silence; a fresh context keeps the linked account but nothing else.
func (m *ContextManager) Load(ctx context.Context, phone, profileName string) (cc *types.ConversationContext, fresh bool, err error) {
	var stored types.ConversationContext
	err = m.kv.Get(ctx, phone, &stored)
	switch {
	case errors.Is(err, types.ErrNotFound):
		return m.newContext(phone, profileName, ""), true, nil
	case err != nil:
		return nil, false, fmt.Errorf("loading whatsapp context: %w", err)
	}

	if m.now().Sub(stored.LastActivity) > IdleReset {
		m.logger.DebugContext(ctx, "Conversation idle, resetting context", slog.Time("last_activity", stored.LastActivity))
		return m.newContext(phone, profileName, stored.ContextData[contextDataUserID]), true, nil
	}
	if profileName != "" {
		stored.ProfileName = profileName
	}
	if stored.ContextData == nil {
		stored.ContextData = map[string]string{}
	}
	return &stored, false, nil
}

func (m *ContextManager) newContext(phone, profileName, userID string) *types.ConversationContext {
	cc := &types.ConversationContext{
		PhoneNumber:  phone,
		ProfileName:  profileName,
		CurrentState: types.ConversationIdle,
		ContextData:  map[string]string{},
		StateHistory: []types.StateTransition{},
		LastActivity: m.now(),
	}
	if userID != "" {
		cc.ContextData[contextDataUserID] = userID
	}
	return cc
}

// Transition records a topic switch, keeping the last MaxStateHistory entries.
func (m *ContextManager) Transition(cc *types.ConversationContext, to types.ConversationState) {
	if cc.CurrentState == to {
		return
	}
	cc.StateHistory = append(cc.StateHistory, types.StateTransition{From: cc.CurrentState, To: to, At: m.now()})
	if n := len(cc.StateHistory); n > types.MaxStateHistory {
		cc.StateHistory = append([]types.StateTransition(nil), cc.StateHistory[n-types.MaxStateHistory:]...)
	}
	cc.CurrentState = to
}

func (m *ContextManager) Save(ctx context.Context, cc *types.ConversationContext) error {
	cc.LastActivity = m.now()
	if err := m.kv.Set(ctx, cc.PhoneNumber, cc, contextTTL); err != nil {
		return fmt.Errorf("saving whatsapp context: %w", err)
	}
	return nil
}

// LinkUser attaches a verified account to the phone number.
func (m *ContextManager) LinkUser(ctx context.Context, phone, userID string) error {
	cc, _, err := m.Load(ctx, phone, "")
	if err != nil {
		return err
	}
	cc.ContextData[contextDataUserID] = userID
	return m.Save(ctx, cc)
}

func LinkedUserID(cc *types.ConversationContext) string {
	if cc == nil {
		return ""
	}
	return cc.ContextData[contextDataUserID]
}

func Greeting(cc *types.ConversationContext) string {
	if cc.ProfileName != "" {
		return fmt.Sprintf("Hi %s! 👋", cc.ProfileName)
	}
	return "Hi there! 👋"
}

func StateForIntent(intent types.IntentType) types.ConversationState {
	switch {
	case intent == types.IntentTripPlanning:
		return types.ConversationTripPlanning
	case intent == types.IntentDealSearch:
		return types.ConversationDealSearch
	case intent == types.IntentBooking:
		return types.ConversationBooking
	case intent == types.IntentTripManagement:
		return types.ConversationTripManagement
	case intent.IsWidget():
		return types.ConversationWidget
	default:
		return types.ConversationChat
	}
}
