// Package memstore is an in-memory store.Store implementation. It exists so
// the reconciliation and analytics engines can be exercised in unit tests
// without a database (spec §9's explicit design note), mirroring the
// teacher's pattern of small mutex-guarded in-memory maps
// (internal/ingest's activeCallMap/affiliationMap) rather than importing a
// fakes/mocking library for a job a plain struct handles.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

// Store is a single-process, mutex-protected implementation of store.Store.
type Store struct {
	mu sync.Mutex

	raw      []store.RawEventRow
	epochs   []store.ChannelEpochRow
	sessions []store.SessionRow
	roles    []store.RoleEventRow
	chanAgg  map[string]store.ChannelDailyAggRow
	userAgg  map[string]store.UserDailyAggRow

	nextSessionID int64
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		chanAgg: make(map[string]store.ChannelDailyAggRow),
		userAgg: make(map[string]store.UserDailyAggRow),
	}
}

// Tx runs fn against the same store (all mutations are already atomic under
// the single mutex); there is no rollback: writes fn made before it returns
// an error stay in the store, and the error is returned to the caller.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, s)
}

func (s *Store) InsertRawEvent(ctx context.Context, row store.RawEventRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.raw {
		if r.AppID == row.AppID && r.NoticeID == row.NoticeID {
			return nil // idempotent on notice_id
		}
	}
	s.raw = append(s.raw, row)
	return nil
}

func (s *Store) FindRawByNoticeID(ctx context.Context, appID, noticeID string) (store.RawEventRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.raw {
		if r.AppID == appID && r.NoticeID == noticeID {
			return r, true, nil
		}
	}
	return store.RawEventRow{}, false, nil
}

func (s *Store) FindJoinWebhooksForEpoch(ctx context.Context, appID string, epoch store.EpochID, uid int, fromTs, toTs int64) ([]store.RawEventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.RawEventRow
	for _, r := range s.raw {
		if r.AppID != appID || r.ChannelName != epoch.Channel {
			continue
		}
		if r.UID == nil || *r.UID != uid {
			continue
		}
		if !mapping.IsJoin(r.EventType) {
			continue
		}
		if r.Ts < fromTs || r.Ts > toTs {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out, nil
}

func (s *Store) CreateEpoch(ctx context.Context, row store.ChannelEpochRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.epochs {
		if e.AppID == row.AppID && e.ID == row.ID {
			s.epochs[i] = row
			return nil
		}
	}
	s.epochs = append(s.epochs, row)
	return nil
}

func (s *Store) CloseEpoch(ctx context.Context, appID string, epoch store.EpochID, destroyedTs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.epochs {
		if e.AppID == appID && e.ID == epoch {
			ts := destroyedTs
			s.epochs[i].DestroyedTs = &ts
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListEpochsForChannel(ctx context.Context, appID, channel string) ([]store.ChannelEpochRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.ChannelEpochRow
	for _, e := range s.epochs {
		if e.AppID == appID && e.Channel == channel {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Ts < out[j].ID.Ts })
	return out, nil
}

func (s *Store) RelabelEpoch(ctx context.Context, appID, channel string, from, to store.EpochID, fromTs int64, toTs *int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inRange := func(ts int64) bool {
		if ts < fromTs {
			return false
		}
		if toTs != nil && ts >= *toTs {
			return false
		}
		return true
	}

	n := 0
	for i := range s.sessions {
		sess := &s.sessions[i]
		if sess.AppID != appID || sess.Channel != channel || sess.Epoch != from {
			continue
		}
		if !inRange(sess.JoinTime) {
			continue
		}
		sess.Epoch = to
		n++
	}
	for i := range s.roles {
		re := &s.roles[i]
		if re.AppID != appID || re.Channel != channel || re.Epoch != from {
			continue
		}
		if !inRange(re.Ts) {
			continue
		}
		re.Epoch = to
		n++
	}
	return n, nil
}

func (s *Store) FindOpenSession(ctx context.Context, appID string, epoch store.EpochID, uid int) (store.SessionRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.AppID == appID && sess.Epoch == epoch && sess.UID == uid && sess.LeaveTime == nil {
			return sess, true, nil
		}
	}
	return store.SessionRow{}, false, nil
}

func (s *Store) FindOpenSessionAnyEpoch(ctx context.Context, appID, channel string, uid int) (store.SessionRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best store.SessionRow
	found := false
	for _, sess := range s.sessions {
		if sess.AppID == appID && sess.Channel == channel && sess.UID == uid && sess.LeaveTime == nil {
			if !found || sess.JoinTime > best.JoinTime {
				best = sess
				found = true
			}
		}
	}
	return best, found, nil
}

func (s *Store) InsertSession(ctx context.Context, row store.SessionRow) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSessionID++
	row.ID = s.nextSessionID
	s.sessions = append(s.sessions, row)
	return row.ID, nil
}

func (s *Store) UpdateSession(ctx context.Context, row store.SessionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sess := range s.sessions {
		if sess.ID == row.ID {
			s.sessions[i] = row
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListChannelSessions(ctx context.Context, appID, channel string, epoch *store.EpochID, limit int) ([]store.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.SessionRow
	for _, sess := range s.sessions {
		if sess.AppID != appID || sess.Channel != channel {
			continue
		}
		if epoch != nil && sess.Epoch != *epoch {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinTime < out[j].JoinTime })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListUserSessions(ctx context.Context, appID string, uid int, limit int) ([]store.SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.SessionRow
	for _, sess := range s.sessions {
		if sess.AppID == appID && sess.UID == uid {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinTime < out[j].JoinTime })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) InsertRoleEvent(ctx context.Context, row store.RoleEventRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = append(s.roles, row)
	return nil
}

func (s *Store) QueryRoleEvents(ctx context.Context, appID string, epoch store.EpochID, uid int, fromTs, toTs int64) ([]store.RoleEventRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.RoleEventRow
	for _, re := range s.roles {
		if re.AppID != appID || re.UID != uid {
			continue
		}
		if re.Epoch != epoch {
			continue
		}
		if re.Ts < fromTs || re.Ts > toTs {
			continue
		}
		out = append(out, re)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out, nil
}

func (s *Store) UpsertChannelDailyAggregate(ctx context.Context, appID, channel string, epoch store.EpochID, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var totalMinutes float64
	users := make(map[int]bool)
	var first, last int64
	firstSet := false
	for _, sess := range s.sessions {
		if sess.AppID != appID || sess.Channel != channel || sess.Epoch != epoch {
			continue
		}
		if dayOf(sess.JoinTime) != day && (sess.LeaveTime == nil || dayOf(*sess.LeaveTime) != day) {
			continue
		}
		if sess.LeaveTime != nil {
			totalMinutes += float64(*sess.LeaveTime-sess.JoinTime) / 60.0
		}
		users[sess.UID] = true
		if !firstSet || sess.JoinTime < first {
			first = sess.JoinTime
			firstSet = true
		}
		end := sess.JoinTime
		if sess.LeaveTime != nil {
			end = *sess.LeaveTime
		}
		if end > last {
			last = end
		}
	}

	key := appID + "|" + channel + "|" + epoch.String() + "|" + day
	s.chanAgg[key] = store.ChannelDailyAggRow{
		AppID: appID, Channel: channel, Epoch: epoch, Day: day,
		TotalMinutes: totalMinutes, UniqueUsers: len(users),
		FirstActivity: first, LastActivity: last,
	}
	return nil
}

func (s *Store) UpsertUserDailyAggregate(ctx context.Context, appID, channel string, epoch store.EpochID, uid int, day string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var totalMinutes float64
	var first, last int64
	firstSet := false
	for _, sess := range s.sessions {
		if sess.AppID != appID || sess.Channel != channel || sess.Epoch != epoch || sess.UID != uid {
			continue
		}
		if dayOf(sess.JoinTime) != day && (sess.LeaveTime == nil || dayOf(*sess.LeaveTime) != day) {
			continue
		}
		if sess.LeaveTime != nil {
			totalMinutes += float64(*sess.LeaveTime-sess.JoinTime) / 60.0
		}
		if !firstSet || sess.JoinTime < first {
			first = sess.JoinTime
			firstSet = true
		}
		end := sess.JoinTime
		if sess.LeaveTime != nil {
			end = *sess.LeaveTime
		}
		if end > last {
			last = end
		}
	}

	key := appID + "|" + channel + "|" + epoch.String() + "|" + itoa(uid) + "|" + day
	s.userAgg[key] = store.UserDailyAggRow{
		AppID: appID, Channel: channel, Epoch: epoch, UID: uid, Day: day,
		TotalMinutes: totalMinutes, FirstActivity: first, LastActivity: last,
	}
	return nil
}

func (s *Store) ListChannelEpochs(ctx context.Context, appID string, limit, offset int) ([]store.EpochSummary, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.EpochSummary
	for _, e := range s.epochs {
		if e.AppID != appID {
			continue
		}
		var last int64
		count := 0
		for _, sess := range s.sessions {
			if sess.AppID != appID || sess.Epoch != e.ID {
				continue
			}
			count++
			end := sess.JoinTime
			if sess.LeaveTime != nil {
				end = *sess.LeaveTime
			}
			if end > last {
				last = end
			}
		}
		if last == 0 {
			last = e.CreatedTs
		}
		out = append(out, store.EpochSummary{Epoch: e, LastActivity: last, SessionCount: count})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity > out[j].LastActivity })
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func dayOf(ts int64) string {
	return epochDayKey(ts)
}
