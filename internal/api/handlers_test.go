package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
	"github.com/snarg/rtc-engine/internal/store/memstore"
)

func newTestReadRouter(s store.Store) *chi.Mux {
	d := &readDeps{store: s, maxSessionsPerResponse: 100}
	r := chi.NewRouter()
	r.Get("/apps/{appID}/channels/{channel}/epochs/{epochTs}", d.epochDetail)
	return r
}

// TestEpochDetailUsesJoinWebhookForInitialRole exercises spec.md §4.2.1
// precedence rule (a): a session with no role events and is_host=false
// must still be attributed as host minutes when a host-join webhook row
// lands within ±5s of join_time.
func TestEpochDetailUsesJoinWebhookForInitialRole(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	epoch := store.Confirmed("app1", "lobby", 1000)
	uid := 7

	if err := s.CreateEpoch(ctx, store.ChannelEpochRow{AppID: "app1", Channel: "lobby", ID: epoch, CreatedTs: 1000}); err != nil {
		t.Fatal(err)
	}
	leave := int64(1600)
	if _, err := s.InsertSession(ctx, store.SessionRow{
		AppID: "app1", Channel: "lobby", Epoch: epoch, UID: uid,
		JoinTime: 1000, LeaveTime: &leave, IsHost: false,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertRawEvent(ctx, store.RawEventRow{
		AppID: "app1", NoticeID: "n1", ChannelName: "lobby",
		UID: &uid, EventType: mapping.EventHostJoinBA, Ts: 1002,
	}); err != nil {
		t.Fatal(err)
	}

	r := newTestReadRouter(s)
	req := httptest.NewRequest(http.MethodGet, "/apps/app1/channels/lobby/epochs/1000", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", w.Code, w.Body.String())
	}

	var got struct {
		HostMinutes     float64 `json:"HostMinutes"`
		AudienceMinutes float64 `json:"AudienceMinutes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.HostMinutes != 10 || got.AudienceMinutes != 0 {
		t.Fatalf("want 10 host minutes from join-webhook-inferred role, got %+v", got)
	}
}

func TestEpochDetailNotFound(t *testing.T) {
	r := newTestReadRouter(memstore.New())
	req := httptest.NewRequest(http.MethodGet, "/apps/app1/channels/lobby/epochs/1000", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", w.Code)
	}
}
