// Package analytics implements the pure, repository-free reporting
// functions over sessions, role events, and raw events (spec.md §4.2):
// role-interval attribution, concurrency curves, day-split minute series,
// quality scoring, and reconnection-pattern classification. None of it
// touches store.Store directly — callers fetch rows and pass them in, so
// every function here is trivially unit-testable.
package analytics

import (
	"sort"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

// joinFuzzyWindowSeconds is the ±5s tolerance for matching a join webhook
// row to a session's join_time when inferring the session's initial role
// (spec.md §4.2.1, §9 open question — kept as a named tunable).
const joinFuzzyWindowSeconds = 5

// RoleMinutes is the host/audience split for one closed session.
type RoleMinutes struct {
	SessionID      int64
	HostMinutes    float64
	AudienceMinutes float64
}

// SessionRoleMinutes implements spec.md §4.2.1 for one session: walk its
// role events between join and leave, splitting elapsed time at each
// switch. Sessions missing leave_time contribute zero minutes (incomplete);
// callers should skip those before charting totals.
func SessionRoleMinutes(sess store.SessionRow, roleEvents []store.RoleEventRow, joinWebhooks []store.RawEventRow) RoleMinutes {
	if sess.LeaveTime == nil {
		return RoleMinutes{SessionID: sess.ID}
	}
	leaveTs := *sess.LeaveTime

	events := roleEventsInRange(roleEvents, sess.UID, sess.JoinTime, leaveTs)

	hostNow := initialRole(sess, events, joinWebhooks)

	result := RoleMinutes{SessionID: sess.ID}
	last := sess.JoinTime
	for _, re := range events {
		addMinutes(&result, hostNow, last, re.Ts)
		hostNow = re.NewRole == mapping.RoleHost
		last = re.Ts
	}
	addMinutes(&result, hostNow, last, leaveTs)
	return result
}

func roleEventsInRange(events []store.RoleEventRow, uid int, fromTs, toTs int64) []store.RoleEventRow {
	var out []store.RoleEventRow
	for _, re := range events {
		if re.UID == uid && re.Ts >= fromTs && re.Ts <= toTs {
			out = append(out, re)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out
}

// initialRole determines the role a session starts in, per spec.md
// §4.2.1's precedence: (a) a join webhook of the matching type within
// ±5s of join_time; (b) the opposite of the first role event's new role;
// (c) the session's own is_host flag.
func initialRole(sess store.SessionRow, events []store.RoleEventRow, joinWebhooks []store.RawEventRow) bool {
	for _, row := range joinWebhooks {
		if row.UID == nil || *row.UID != sess.UID {
			continue
		}
		if !mapping.IsJoin(row.EventType) {
			continue
		}
		if abs64(row.Ts-sess.JoinTime) > joinFuzzyWindowSeconds {
			continue
		}
		role, _, ok := mapping.InitialRole(row.EventType)
		if ok {
			return role == mapping.RoleHost
		}
	}
	if len(events) > 0 {
		return events[0].NewRole != mapping.RoleHost
	}
	return sess.IsHost
}

func addMinutes(result *RoleMinutes, isHost bool, fromTs, toTs int64) {
	if toTs <= fromTs {
		return
	}
	minutes := float64(toTs-fromTs) / 60.0
	if isHost {
		result.HostMinutes += minutes
	} else {
		result.AudienceMinutes += minutes
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
