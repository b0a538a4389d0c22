package analytics

import (
	"math"
	"testing"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

func closeEnough(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// Scenario 1: clean call — host_minutes = 1.0, audience_minutes = 0.0.
func TestSessionRoleMinutesCleanCall(t *testing.T) {
	leave := int64(161)
	sess := store.SessionRow{UID: 1, JoinTime: 101, LeaveTime: &leave, IsHost: true}
	rm := SessionRoleMinutes(sess, nil, nil)
	if !closeEnough(rm.HostMinutes, 1.0) || !closeEnough(rm.AudienceMinutes, 0) {
		t.Fatalf("want host=1.0 audience=0.0, got %+v", rm)
	}
}

// Scenario 2: role switch mid-session — host_minutes=0.5, audience_minutes=0.5.
func TestSessionRoleMinutesRoleSwitch(t *testing.T) {
	leave := int64(70)
	sess := store.SessionRow{UID: 7, JoinTime: 10, LeaveTime: &leave, IsHost: false}
	events := []store.RoleEventRow{
		{UID: 7, Ts: 40, NewRole: mapping.RoleHost},
	}
	rm := SessionRoleMinutes(sess, events, nil)
	if !closeEnough(rm.AudienceMinutes, 0.5) || !closeEnough(rm.HostMinutes, 0.5) {
		t.Fatalf("want host=0.5 audience=0.5, got %+v", rm)
	}
}

func TestSessionRoleMinutesIncompleteIsZero(t *testing.T) {
	sess := store.SessionRow{UID: 1, JoinTime: 10}
	rm := SessionRoleMinutes(sess, nil, nil)
	if rm.HostMinutes != 0 || rm.AudienceMinutes != 0 {
		t.Fatalf("want zero minutes for open session, got %+v", rm)
	}
}

// Universal property: role-minute conservation.
func TestRoleMinuteConservation(t *testing.T) {
	leave := int64(400)
	sess := store.SessionRow{UID: 3, JoinTime: 100, LeaveTime: &leave, IsHost: true}
	events := []store.RoleEventRow{
		{UID: 3, Ts: 150, NewRole: mapping.RoleAudience},
		{UID: 3, Ts: 250, NewRole: mapping.RoleHost},
	}
	rm := SessionRoleMinutes(sess, events, nil)
	total := rm.HostMinutes + rm.AudienceMinutes
	want := float64(leave-sess.JoinTime) / 60.0
	if !closeEnough(total, want) {
		t.Fatalf("want total %.4f, got %.4f", want, total)
	}
}

func TestInitialRoleFromJoinWebhook(t *testing.T) {
	sess := store.SessionRow{UID: 1, JoinTime: 100, IsHost: false}
	joinWebhooks := []store.RawEventRow{
		{UID: intp(1), Ts: 102, EventType: mapping.EventHostJoinBA},
	}
	if !initialRole(sess, nil, joinWebhooks) {
		t.Fatal("want host inferred from join webhook within fuzzy window")
	}
}

func intp(v int) *int { return &v }
