package memstore

import (
	"context"
	"testing"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

func TestInsertRawEventIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	row := store.RawEventRow{AppID: "app1", NoticeID: "n1", Ts: 100}

	if err := s.InsertRawEvent(ctx, row); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.InsertRawEvent(ctx, row); err != nil {
		t.Fatalf("second insert: %v", err)
	}

	if len(s.raw) != 1 {
		t.Fatalf("want 1 raw row after duplicate insert, got %d", len(s.raw))
	}
}

func TestFindRawByNoticeID(t *testing.T) {
	s := New()
	ctx := context.Background()
	row := store.RawEventRow{AppID: "app1", NoticeID: "n1", Ts: 100}
	if err := s.InsertRawEvent(ctx, row); err != nil {
		t.Fatal(err)
	}

	t.Run("found", func(t *testing.T) {
		got, ok, err := s.FindRawByNoticeID(ctx, "app1", "n1")
		if err != nil || !ok {
			t.Fatalf("got ok=%v err=%v", ok, err)
		}
		if got.Ts != 100 {
			t.Fatalf("want ts 100, got %d", got.Ts)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, ok, err := s.FindRawByNoticeID(ctx, "app1", "missing")
		if err != nil || ok {
			t.Fatalf("got ok=%v err=%v", ok, err)
		}
	})
}

func TestEpochLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := store.Confirmed("app1", "lobby", 1000)

	if err := s.CreateEpoch(ctx, store.ChannelEpochRow{AppID: "app1", Channel: "lobby", ID: id, CreatedTs: 1000}); err != nil {
		t.Fatal(err)
	}

	epochs, err := s.ListEpochsForChannel(ctx, "app1", "lobby")
	if err != nil {
		t.Fatal(err)
	}
	if len(epochs) != 1 || !epochs[0].Open() {
		t.Fatalf("expected one open epoch, got %+v", epochs)
	}

	if err := s.CloseEpoch(ctx, "app1", id, 2000); err != nil {
		t.Fatal(err)
	}

	epochs, err = s.ListEpochsForChannel(ctx, "app1", "lobby")
	if err != nil {
		t.Fatal(err)
	}
	if epochs[0].Open() {
		t.Fatalf("expected closed epoch, got %+v", epochs[0])
	}
	if *epochs[0].DestroyedTs != 2000 {
		t.Fatalf("want destroyed_ts 2000, got %d", *epochs[0].DestroyedTs)
	}
}

func TestCloseEpochNotFound(t *testing.T) {
	s := New()
	err := s.CloseEpoch(context.Background(), "app1", store.Confirmed("app1", "lobby", 1), 2)
	if err != store.ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSessionLifecycleAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()
	epoch := store.Confirmed("app1", "lobby", 1000)

	id, err := s.InsertSession(ctx, store.SessionRow{
		AppID: "app1", Channel: "lobby", Epoch: epoch, UID: 7, JoinTime: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}

	open, ok, err := s.FindOpenSession(ctx, "app1", epoch, 7)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if open.ID != id {
		t.Fatalf("want id %d, got %d", id, open.ID)
	}

	leave := int64(1500)
	open.LeaveTime = &leave
	if err := s.UpdateSession(ctx, open); err != nil {
		t.Fatal(err)
	}

	_, ok, err = s.FindOpenSession(ctx, "app1", epoch, 7)
	if err != nil || ok {
		t.Fatalf("expected no open session after leave, ok=%v err=%v", ok, err)
	}
}

func TestFindOpenSessionAnyEpochPicksLatestJoin(t *testing.T) {
	s := New()
	ctx := context.Background()
	older := store.Confirmed("app1", "lobby", 1000)
	newer := store.Provisional("app1", "lobby", 2000)

	if _, err := s.InsertSession(ctx, store.SessionRow{AppID: "app1", Channel: "lobby", Epoch: older, UID: 7, JoinTime: 1000}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertSession(ctx, store.SessionRow{AppID: "app1", Channel: "lobby", Epoch: newer, UID: 7, JoinTime: 2000}); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.FindOpenSessionAnyEpoch(ctx, "app1", "lobby", 7)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Epoch != newer {
		t.Fatalf("want latest-join epoch %v, got %v", newer, got.Epoch)
	}
}

func TestRelabelEpochMovesSessionsAndRoleEvents(t *testing.T) {
	s := New()
	ctx := context.Background()
	from := store.Provisional("app1", "lobby", 1000)
	to := store.Confirmed("app1", "lobby", 1000)

	if _, err := s.InsertSession(ctx, store.SessionRow{AppID: "app1", Channel: "lobby", Epoch: from, UID: 7, JoinTime: 1200}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertRoleEvent(ctx, store.RoleEventRow{AppID: "app1", Channel: "lobby", Epoch: from, UID: 7, Ts: 1300}); err != nil {
		t.Fatal(err)
	}
	// out of range: before fromTs
	if _, err := s.InsertSession(ctx, store.SessionRow{AppID: "app1", Channel: "lobby", Epoch: from, UID: 8, JoinTime: 900}); err != nil {
		t.Fatal(err)
	}

	n, err := s.RelabelEpoch(ctx, "app1", "lobby", from, to, 1000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("want 2 relabeled rows, got %d", n)
	}

	sessions, err := s.ListChannelSessions(ctx, "app1", "lobby", &to, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].UID != 7 {
		t.Fatalf("want uid 7 moved to %v, got %+v", to, sessions)
	}

	stillFrom, err := s.ListChannelSessions(ctx, "app1", "lobby", &from, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stillFrom) != 1 || stillFrom[0].UID != 8 {
		t.Fatalf("want uid 8 to remain on %v, got %+v", from, stillFrom)
	}
}

func TestListChannelSessionsRespectsLimitAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()
	epoch := store.Confirmed("app1", "lobby", 1000)

	for uid, join := range map[int]int64{1: 300, 2: 100, 3: 200} {
		if _, err := s.InsertSession(ctx, store.SessionRow{AppID: "app1", Channel: "lobby", Epoch: epoch, UID: uid, JoinTime: join}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListChannelSessions(ctx, "app1", "lobby", &epoch, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 rows, got %d", len(got))
	}
	if got[0].UID != 2 || got[1].UID != 3 {
		t.Fatalf("want join-time order [2,3], got [%d,%d]", got[0].UID, got[1].UID)
	}
}

func TestUpsertChannelDailyAggregate(t *testing.T) {
	s := New()
	ctx := context.Background()
	epoch := store.Confirmed("app1", "lobby", 0)

	join := int64(0)
	leave := int64(600) // 10 minutes
	if _, err := s.InsertSession(ctx, store.SessionRow{
		AppID: "app1", Channel: "lobby", Epoch: epoch, UID: 1, JoinTime: join, LeaveTime: &leave,
	}); err != nil {
		t.Fatal(err)
	}

	day := epochDayKey(0)
	if err := s.UpsertChannelDailyAggregate(ctx, "app1", "lobby", epoch, day); err != nil {
		t.Fatal(err)
	}

	key := "app1|lobby|" + epoch.String() + "|" + day
	agg, ok := s.chanAgg[key]
	if !ok {
		t.Fatalf("expected aggregate under key %q", key)
	}
	if agg.TotalMinutes != 10 {
		t.Fatalf("want 10 minutes, got %v", agg.TotalMinutes)
	}
	if agg.UniqueUsers != 1 {
		t.Fatalf("want 1 unique user, got %d", agg.UniqueUsers)
	}
}

func TestListChannelEpochsPagination(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i, ts := range []int64{100, 300, 200} {
		id := store.Confirmed("app1", "room", ts)
		if err := s.CreateEpoch(ctx, store.ChannelEpochRow{AppID: "app1", Channel: "room", ID: id, CreatedTs: ts}); err != nil {
			t.Fatalf("epoch %d: %v", i, err)
		}
	}

	all, total, err := s.ListChannelEpochs(ctx, "app1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("want 3 total/returned, got total=%d len=%d", total, len(all))
	}
	// no sessions recorded so LastActivity falls back to CreatedTs; highest first
	if all[0].Epoch.CreatedTs != 300 {
		t.Fatalf("want newest epoch first, got %+v", all[0])
	}

	page, total, err := s.ListChannelEpochs(ctx, "app1", 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 1 {
		t.Fatalf("want total=3 len=1, got total=%d len=%d", total, len(page))
	}
}

func TestFindJoinWebhooksForEpoch(t *testing.T) {
	s := New()
	ctx := context.Background()
	uid := 7

	rows := []store.RawEventRow{
		{AppID: "app1", NoticeID: "n1", ChannelName: "lobby", UID: &uid, EventType: mapping.EventHostJoinBA, Ts: 1003},
		// out of uid scope
		{AppID: "app1", NoticeID: "n2", ChannelName: "lobby", UID: intPtr(8), EventType: mapping.EventAudienceJoin, Ts: 1003},
		// out of channel scope
		{AppID: "app1", NoticeID: "n3", ChannelName: "other", UID: &uid, EventType: mapping.EventAudienceJoin, Ts: 1003},
		// not a join event
		{AppID: "app1", NoticeID: "n4", ChannelName: "lobby", UID: &uid, EventType: mapping.EventHostLeaveBA, Ts: 1004},
		// out of ts range
		{AppID: "app1", NoticeID: "n5", ChannelName: "lobby", UID: &uid, EventType: mapping.EventAudienceJoin, Ts: 2000},
		// earlier in-range join, used to check ordering
		{AppID: "app1", NoticeID: "n6", ChannelName: "lobby", UID: &uid, EventType: mapping.EventHostJoinComm, Ts: 1000},
	}
	for i, row := range rows {
		if err := s.InsertRawEvent(ctx, row); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
	}

	got, err := s.FindJoinWebhooksForEpoch(ctx, "app1", store.Confirmed("app1", "lobby", 1000), uid, 1000, 1500)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 matching rows, got %d: %+v", len(got), got)
	}
	if got[0].NoticeID != "n6" || got[1].NoticeID != "n1" {
		t.Fatalf("want ts-ascending [n6,n1], got [%s,%s]", got[0].NoticeID, got[1].NoticeID)
	}
}

func intPtr(v int) *int { return &v }
