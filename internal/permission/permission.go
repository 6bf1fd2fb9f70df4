// Package permission decides which client may issue which control action.
// Two models coexist for backward compatibility: a static role table and a
// legacy coarse-grant fallback. Selection is role-first - a client that
// declares any role is judged by the role table alone.
package permission

// Action is a fine-grained control operation a client may request.
type Action string

const (
	ActionStartResume     Action = "START_RESUME"
	ActionPause           Action = "PAUSE"
	ActionAddTime         Action = "ADD_TIME"
	ActionSubtractTime    Action = "SUBTRACT_TIME"
	ActionResetTimer      Action = "RESET_TIMER"
	ActionScheduleView    Action = "SCHEDULE_VIEW"
	ActionScheduleEdit    Action = "SCHEDULE_EDIT"
	ActionScheduleReorder Action = "SCHEDULE_REORDER"
	ActionMessageSend     Action = "MESSAGE_SEND"
	ActionMessagePreset   Action = "MESSAGE_PRESET"
	ActionMessageClear    Action = "MESSAGE_CLEAR"
	ActionPersonalTimer   Action = "PERSONAL_TIMER"
	ActionPersonalMessage Action = "PERSONAL_MESSAGE"
	ActionFadeToBlack     Action = "FADE_TO_BLACK"
	ActionDisplaySettings Action = "DISPLAY_SETTINGS"
)

// Grant is a coarse legacy permission label, used only when no role is
// declared.
const (
	GrantTimeControl = "TIME_CONTROL"
	GrantMessageOnly = "MESSAGE_ONLY"
	GrantFullControl = "FULL_CONTROL"
)

// Policy answers whether an action is allowed. Implementations are pure and
// total: unknown actions are denied, never raised.
type Policy interface {
	Allows(action Action) bool
}

// allActions enumerates the full action set for the admin role.
var allActions = []Action{
	ActionStartResume, ActionPause, ActionAddTime, ActionSubtractTime,
	ActionResetTimer, ActionScheduleView, ActionScheduleEdit,
	ActionScheduleReorder, ActionMessageSend, ActionMessagePreset,
	ActionMessageClear, ActionPersonalTimer, ActionPersonalMessage,
	ActionFadeToBlack, ActionDisplaySettings,
}

// roleActions is the static role -> allowed-actions table.
// FUNCTIONAL DISCOVERY: Unknown roles deliberately absent - they resolve to
// an empty action set rather than an error
var roleActions = map[string]map[Action]struct{}{
	"admin": actionSet(allActions...),
	"queue_manager": actionSet(
		ActionStartResume, ActionPause, ActionAddTime, ActionSubtractTime,
		ActionScheduleView, ActionMessageSend, ActionMessagePreset,
	),
	"speaker": actionSet(
		ActionPersonalTimer, ActionPersonalMessage, ActionScheduleView,
	),
	"viewer": {},
}

// grantActions maps each fine-grained action to the coarse grants that
// satisfy it. An action is allowed iff the client holds at least one.
var grantActions = map[Action][]string{
	ActionStartResume:     {GrantTimeControl, GrantFullControl},
	ActionPause:           {GrantTimeControl, GrantFullControl},
	ActionAddTime:         {GrantTimeControl, GrantFullControl},
	ActionSubtractTime:    {GrantTimeControl, GrantFullControl},
	ActionResetTimer:      {GrantTimeControl, GrantFullControl},
	ActionPersonalTimer:   {GrantTimeControl, GrantFullControl},
	ActionMessageSend:     {GrantMessageOnly, GrantFullControl},
	ActionMessagePreset:   {GrantMessageOnly, GrantFullControl},
	ActionMessageClear:    {GrantMessageOnly, GrantFullControl},
	ActionPersonalMessage: {GrantMessageOnly, GrantFullControl},
	ActionScheduleView:    {GrantTimeControl, GrantMessageOnly, GrantFullControl},
	ActionScheduleEdit:    {GrantFullControl},
	ActionScheduleReorder: {GrantFullControl},
	ActionFadeToBlack:     {GrantFullControl},
	ActionDisplaySettings: {GrantFullControl},
}

func actionSet(actions ...Action) map[Action]struct{} {
	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// rolePolicy judges against the static role table.
type rolePolicy struct {
	allowed map[Action]struct{}
}

func (p rolePolicy) Allows(action Action) bool {
	_, ok := p.allowed[action]
	return ok
}

// grantPolicy judges against the legacy coarse grant set.
type grantPolicy struct {
	grants map[string]struct{}
}

func (p grantPolicy) Allows(action Action) bool {
	satisfying, known := grantActions[action]
	if !known {
		return false // Unknown actions are denied by default
	}
	for _, grant := range satisfying {
		if _, held := p.grants[grant]; held {
			return true
		}
	}
	return false
}

// ForClient selects the policy for a client: role-based when any role is
// declared, legacy grants otherwise. Precedence is role-first even when both
// are present.
func ForClient(role string, grants []string) Policy {
	if role != "" {
		allowed, known := roleActions[role]
		if !known {
			allowed = map[Action]struct{}{}
		}
		return rolePolicy{allowed: allowed}
	}

	held := make(map[string]struct{}, len(grants))
	for _, grant := range grants {
		held[grant] = struct{}{}
	}
	return grantPolicy{grants: held}
}

// IsAllowed is the one-call form of ForClient(...).Allows(...).
func IsAllowed(role string, grants []string, action Action) bool {
	return ForClient(role, grants).Allows(action)
}
