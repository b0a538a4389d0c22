package mapping

// EventType is the closed set of notification event-type codes the core
// interprets (spec §6.1). Codes outside this set are persisted raw and
// otherwise ignored.
type EventType int

const (
	EventChannelCreated   EventType = 101
	EventChannelDestroyed EventType = 102
	EventHostJoinBA       EventType = 103 // host join, broadcaster/audience mode
	EventHostLeaveBA      EventType = 104
	EventAudienceJoin     EventType = 105
	EventAudienceLeave    EventType = 106
	EventHostJoinComm     EventType = 107 // host join, communication mode
	EventHostLeaveComm    EventType = 108
	EventRoleToHost       EventType = 111
	EventRoleToAudience   EventType = 112
)

// Role is a user's host/audience role within a channel epoch.
type Role int

const (
	RoleAudience Role = iota
	RoleHost
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "audience"
}

// IsJoin reports whether the event type is one of the three join variants.
func IsJoin(t EventType) bool {
	switch t {
	case EventHostJoinBA, EventAudienceJoin, EventHostJoinComm:
		return true
	default:
		return false
	}
}

// IsLeave reports whether the event type is one of the three leave variants.
func IsLeave(t EventType) bool {
	switch t {
	case EventHostLeaveBA, EventAudienceLeave, EventHostLeaveComm:
		return true
	default:
		return false
	}
}

// IsRoleChange reports whether the event type is an explicit role switch.
func IsRoleChange(t EventType) bool {
	return t == EventRoleToHost || t == EventRoleToAudience
}

// InitialRole returns the role and communication_mode a join event type
// implies (spec §4.1.4): 103 -> host/mode0, 105 -> audience/mode0,
// 107 -> host/mode1.
func InitialRole(t EventType) (role Role, communicationMode int, ok bool) {
	switch t {
	case EventHostJoinBA:
		return RoleHost, 0, true
	case EventAudienceJoin:
		return RoleAudience, 0, true
	case EventHostJoinComm:
		return RoleHost, 1, true
	default:
		return 0, 0, false
	}
}

// RoleFromSwitch returns the role a role-change event type switches a user to.
func RoleFromSwitch(t EventType) (role Role, ok bool) {
	switch t {
	case EventRoleToHost:
		return RoleHost, true
	case EventRoleToAudience:
		return RoleAudience, true
	default:
		return 0, false
	}
}

// InitialRoleForLeave mirrors InitialRole for the three leave event types,
// used when a leave arrives with a duration but no matching open session
// (spec §4.1.4's "synthesize a closed session" case): 104 -> host/mode0,
// 106 -> audience/mode0, 108 -> host/mode1.
func InitialRoleForLeave(t EventType) (role Role, communicationMode int, ok bool) {
	switch t {
	case EventHostLeaveBA:
		return RoleHost, 0, true
	case EventAudienceLeave:
		return RoleAudience, 0, true
	case EventHostLeaveComm:
		return RoleHost, 1, true
	default:
		return 0, 0, false
	}
}
