package reconcile

import (
	"context"
	"testing"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
	"github.com/snarg/rtc-engine/internal/store/memstore"
)

func intp(v int) *int     { return &v }
func i64p(v int64) *int64 { return &v }

func newTestEngine() (*Engine, *memstore.Store) {
	ms := memstore.New()
	return New(ms, Config{}), ms
}

func notif(notice string, appID, channel string, eventType mapping.EventType, ts int64) Notification {
	return Notification{
		AppID: appID, NoticeID: notice, EventType: eventType,
		ChannelName: channel, Ts: ts,
	}
}

// Scenario 1: clean call (spec.md §8 seed scenario 1).
func TestCleanCall(t *testing.T) {
	e, ms := newTestEngine()
	ctx := context.Background()
	appID, channel := "app1", "lobby"

	steps := []Notification{
		notif("n1", appID, channel, mapping.EventChannelCreated, 100),
		withUID(notif("n2", appID, channel, mapping.EventHostJoinBA, 101), 1, 1),
		withUIDAndDuration(notif("n3", appID, channel, mapping.EventHostLeaveBA, 161), 1, 2, 60),
		notif("n4", appID, channel, mapping.EventChannelDestroyed, 170),
	}
	for _, n := range steps {
		outcome, err := e.Ingest(ctx, n)
		if err != nil {
			t.Fatalf("ingest %s: %v", n.NoticeID, err)
		}
		if outcome != Accepted {
			t.Fatalf("ingest %s: want Accepted, got %v", n.NoticeID, outcome)
		}
	}

	epoch := store.Confirmed(appID, channel, 100)
	sessions, err := ms.ListChannelSessions(ctx, appID, channel, &epoch, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("want 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.DurationSeconds == nil || *s.DurationSeconds != 60 {
		t.Fatalf("want duration 60, got %v", s.DurationSeconds)
	}
}

// Scenario 3: out-of-order leave before join (spec.md §8 seed scenario 3).
func TestOutOfOrderLeaveBeforeJoin(t *testing.T) {
	e, ms := newTestEngine()
	ctx := context.Background()
	appID, channel := "app1", "lobby"

	if _, err := e.Ingest(ctx, notif("c1", appID, channel, mapping.EventChannelCreated, 0)); err != nil {
		t.Fatal(err)
	}
	leave := withUIDAndDuration(notif("n1", appID, channel, mapping.EventHostLeaveBA, 200), 3, 2, 30)
	if _, err := e.Ingest(ctx, leave); err != nil {
		t.Fatal(err)
	}
	join := withUID(notif("n2", appID, channel, mapping.EventHostJoinBA, 170), 3, 1)
	if _, err := e.Ingest(ctx, join); err != nil {
		t.Fatal(err)
	}

	epoch := store.Confirmed(appID, channel, 0)
	sessions, err := ms.ListChannelSessions(ctx, appID, channel, &epoch, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("want 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.JoinTime != 170 {
		t.Fatalf("want join 170, got %d", s.JoinTime)
	}
	if s.LeaveTime == nil || *s.LeaveTime != 200 {
		t.Fatalf("want leave 200, got %v", s.LeaveTime)
	}
	if s.DurationSeconds == nil || *s.DurationSeconds != 30 {
		t.Fatalf("want duration 30, got %v", s.DurationSeconds)
	}
}

// Scenario 4: orphan then create (spec.md §8 seed scenario 4).
func TestOrphanThenCreate(t *testing.T) {
	e, ms := newTestEngine()
	ctx := context.Background()
	appID, channel := "app1", "lobby"

	orphan := withUID(notif("n1", appID, channel, mapping.EventAudienceJoin, 500), 9, 1)
	outcome, err := e.Ingest(ctx, orphan)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Accepted {
		t.Fatalf("want Accepted, got %v", outcome)
	}

	epochs, err := ms.ListEpochsForChannel(ctx, appID, channel)
	if err != nil {
		t.Fatal(err)
	}
	if len(epochs) != 1 || epochs[0].ID.Kind != store.EpochProvisional {
		t.Fatalf("want one provisional epoch, got %+v", epochs)
	}

	if _, err := e.Ingest(ctx, notif("n2", appID, channel, mapping.EventChannelCreated, 490)); err != nil {
		t.Fatal(err)
	}

	confirmed := store.Confirmed(appID, channel, 490)
	sessions, err := ms.ListChannelSessions(ctx, appID, channel, &confirmed, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].UID != 9 {
		t.Fatalf("want orphan session relabeled to confirmed epoch, got %+v", sessions)
	}

	epochs, err = ms.ListEpochsForChannel(ctx, appID, channel)
	if err != nil {
		t.Fatal(err)
	}
	provisional := store.EpochID{}
	for _, ep := range epochs {
		if ep.ID.Kind == store.EpochProvisional {
			provisional = ep.ID
		}
	}
	remaining, err := ms.ListChannelSessions(ctx, appID, channel, &provisional, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("want no sessions left under provisional id, got %+v", remaining)
	}
}

// Scenario 5: duplicate notice_id (spec.md §8 seed scenario 5).
func TestDuplicateNoticeID(t *testing.T) {
	e, ms := newTestEngine()
	ctx := context.Background()
	appID, channel := "app1", "lobby"

	if _, err := e.Ingest(ctx, notif("c1", appID, channel, mapping.EventChannelCreated, 0)); err != nil {
		t.Fatal(err)
	}
	join := withUID(notif("n1", appID, channel, mapping.EventHostJoinBA, 1), 1, 1)

	outcome1, err := e.Ingest(ctx, join)
	if err != nil {
		t.Fatal(err)
	}
	if outcome1 != Accepted {
		t.Fatalf("first ingest: want Accepted, got %v", outcome1)
	}

	outcome2, err := e.Ingest(ctx, join)
	if err == nil {
		t.Fatal("want ErrDuplicate on second ingest")
	}
	if outcome2 != Duplicate {
		t.Fatalf("second ingest: want Duplicate, got %v", outcome2)
	}

	epoch := store.Confirmed(appID, channel, 0)
	sessions, err := ms.ListChannelSessions(ctx, appID, channel, &epoch, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("want exactly 1 session, got %d", len(sessions))
	}
}

func TestLogicSkipMissingUID(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()

	n := notif("n1", "app1", "lobby", mapping.EventHostJoinBA, 1) // no UID/ClientSeq
	outcome, err := e.Ingest(ctx, n)
	if err != nil {
		t.Fatalf("logic-skip should still report success, got err=%v", err)
	}
	if outcome != Accepted {
		t.Fatalf("want Accepted (raw persisted, session skipped), got %v", outcome)
	}
}

func withUID(n Notification, uid int, seq int64) Notification {
	n.UID = intp(uid)
	n.ClientSeq = i64p(seq)
	return n
}

func withUIDAndDuration(n Notification, uid int, seq int64, dur int64) Notification {
	n = withUID(n, uid, seq)
	n.Duration = i64p(dur)
	return n
}
