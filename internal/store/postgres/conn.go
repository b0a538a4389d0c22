package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

// querier is the subset of pgxpool.Pool and pgx.Tx this package needs; it
// lets every query method below run unmodified whether called directly on
// the pool or inside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn implements every store.Store method except Tx against a querier,
// so the same code path serves both top-level calls (q = pool) and calls
// made from inside a transaction (q = pgx.Tx).
type conn struct {
	q querier
}

func (c *conn) InsertRawEvent(ctx context.Context, row store.RawEventRow) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO raw_events (app_id, notice_id, product_id, event_type, notify_ms, sid,
			channel_name, ts, uid, client_seq, platform, client_type, reason, duration,
			channel_session_id, raw_payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (app_id, notice_id, ts) DO NOTHING`,
		row.AppID, row.NoticeID, row.ProductID, int(row.EventType), row.NotifyMs, row.Sid,
		row.ChannelName, row.Ts, row.UID, row.ClientSeq, row.Platform, row.ClientType, row.Reason, row.Duration,
		row.ChannelSessionID, row.RawPayload,
	)
	return err
}

func (c *conn) FindRawByNoticeID(ctx context.Context, appID, noticeID string) (store.RawEventRow, bool, error) {
	var row store.RawEventRow
	var eventType int
	err := c.q.QueryRow(ctx, `
		SELECT app_id, notice_id, product_id, event_type, notify_ms, sid, channel_name, ts,
			uid, client_seq, platform, client_type, reason, duration, channel_session_id, raw_payload
		FROM raw_events WHERE app_id = $1 AND notice_id = $2 LIMIT 1`,
		appID, noticeID,
	).Scan(&row.AppID, &row.NoticeID, &row.ProductID, &eventType, &row.NotifyMs, &row.Sid, &row.ChannelName, &row.Ts,
		&row.UID, &row.ClientSeq, &row.Platform, &row.ClientType, &row.Reason, &row.Duration, &row.ChannelSessionID, &row.RawPayload)
	if err == pgx.ErrNoRows {
		return store.RawEventRow{}, false, nil
	}
	if err != nil {
		return store.RawEventRow{}, false, err
	}
	row.EventType = mapping.EventType(eventType)
	return row, true, nil
}

// joinEventTypes are the raw event types that can establish a session's
// initial role (spec.md §4.2.1): channel-created/host-join/audience-join.
var joinEventTypes = []int{
	int(mapping.EventChannelCreated),
	int(mapping.EventHostJoinBA), int(mapping.EventAudienceJoin), int(mapping.EventHostJoinComm),
}

func (c *conn) FindJoinWebhooksForEpoch(ctx context.Context, appID string, epoch store.EpochID, uid int, fromTs, toTs int64) ([]store.RawEventRow, error) {
	rows, err := c.q.Query(ctx, `
		SELECT app_id, notice_id, product_id, event_type, notify_ms, sid, channel_name, ts,
			uid, client_seq, platform, client_type, reason, duration, channel_session_id, raw_payload
		FROM raw_events
		WHERE app_id = $1 AND channel_name = $2 AND uid = $3 AND ts BETWEEN $4 AND $5
			AND event_type = ANY($6)
		ORDER BY ts ASC`,
		appID, epoch.Channel, uid, fromTs, toTs, joinEventTypes,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RawEventRow
	for rows.Next() {
		var row store.RawEventRow
		var eventType int
		if err := rows.Scan(&row.AppID, &row.NoticeID, &row.ProductID, &eventType, &row.NotifyMs, &row.Sid, &row.ChannelName, &row.Ts,
			&row.UID, &row.ClientSeq, &row.Platform, &row.ClientType, &row.Reason, &row.Duration, &row.ChannelSessionID, &row.RawPayload); err != nil {
			return nil, err
		}
		row.EventType = mapping.EventType(eventType)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (c *conn) CreateEpoch(ctx context.Context, row store.ChannelEpochRow) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO channel_epochs (app_id, channel, kind, created_ts, destroyed_ts)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (app_id, channel, kind, created_ts) DO UPDATE SET destroyed_ts = EXCLUDED.destroyed_ts`,
		row.AppID, row.Channel, int(row.ID.Kind), row.CreatedTs, row.DestroyedTs,
	)
	return err
}

func (c *conn) CloseEpoch(ctx context.Context, appID string, epoch store.EpochID, destroyedTs int64) error {
	tag, err := c.q.Exec(ctx, `
		UPDATE channel_epochs SET destroyed_ts = $1
		WHERE app_id = $2 AND channel = $3 AND kind = $4 AND created_ts = $5`,
		destroyedTs, appID, epoch.Channel, int(epoch.Kind), epoch.Ts,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *conn) ListEpochsForChannel(ctx context.Context, appID, channel string) ([]store.ChannelEpochRow, error) {
	rows, err := c.q.Query(ctx, `
		SELECT app_id, channel, kind, created_ts, destroyed_ts
		FROM channel_epochs WHERE app_id = $1 AND channel = $2 ORDER BY created_ts ASC`,
		appID, channel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ChannelEpochRow
	for rows.Next() {
		var e store.ChannelEpochRow
		var kind int
		if err := rows.Scan(&e.AppID, &e.Channel, &kind, &e.CreatedTs, &e.DestroyedTs); err != nil {
			return nil, err
		}
		e.ID = store.EpochID{AppID: e.AppID, Channel: e.Channel, Kind: store.EpochKind(kind), Ts: e.CreatedTs}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *conn) RelabelEpoch(ctx context.Context, appID, channel string, from, to store.EpochID, fromTs int64, toTs *int64) (int, error) {
	var n int
	tag, err := c.q.Exec(ctx, `
		UPDATE sessions SET epoch_kind = $1, epoch_ts = $2
		WHERE app_id = $3 AND channel = $4 AND epoch_kind = $5 AND epoch_ts = $6
			AND join_time >= $7 AND ($8::bigint IS NULL OR join_time < $8)`,
		int(to.Kind), to.Ts, appID, channel, int(from.Kind), from.Ts, fromTs, toTs,
	)
	if err != nil {
		return 0, err
	}
	n += int(tag.RowsAffected())

	tag, err = c.q.Exec(ctx, `
		UPDATE role_events SET epoch_kind = $1, epoch_ts = $2
		WHERE app_id = $3 AND channel = $4 AND epoch_kind = $5 AND epoch_ts = $6
			AND ts >= $7 AND ($8::bigint IS NULL OR ts < $8)`,
		int(to.Kind), to.Ts, appID, channel, int(from.Kind), from.Ts, fromTs, toTs,
	)
	if err != nil {
		return n, err
	}
	n += int(tag.RowsAffected())
	return n, nil
}

func scanSession(row interface {
	Scan(dest ...any) error
}) (store.SessionRow, error) {
	var s store.SessionRow
	var kind int
	err := row.Scan(&s.ID, &s.AppID, &s.Channel, &kind, &s.Epoch.Ts, &s.UID, &s.JoinTime, &s.LeaveTime,
		&s.DurationSeconds, &s.IsHost, &s.CommunicationMode, &s.RoleSwitches, &s.LastClientSeq,
		&s.Platform, &s.ClientType, &s.Reason, &s.Sid, &s.Account)
	if err != nil {
		return store.SessionRow{}, err
	}
	s.Epoch = store.EpochID{AppID: s.AppID, Channel: s.Channel, Kind: store.EpochKind(kind), Ts: s.Epoch.Ts}
	return s, nil
}

const sessionColumns = `id, app_id, channel, epoch_kind, epoch_ts, uid, join_time, leave_time,
	duration_seconds, is_host, communication_mode, role_switches, last_client_seq,
	platform, client_type, reason, sid, account`

func (c *conn) FindOpenSession(ctx context.Context, appID string, epoch store.EpochID, uid int) (store.SessionRow, bool, error) {
	row := c.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE app_id = $1 AND epoch_kind = $2 AND epoch_ts = $3 AND uid = $4 AND leave_time IS NULL
		LIMIT 1`,
		appID, int(epoch.Kind), epoch.Ts, uid,
	)
	s, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return store.SessionRow{}, false, nil
	}
	if err != nil {
		return store.SessionRow{}, false, err
	}
	return s, true, nil
}

func (c *conn) FindOpenSessionAnyEpoch(ctx context.Context, appID, channel string, uid int) (store.SessionRow, bool, error) {
	row := c.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE app_id = $1 AND channel = $2 AND uid = $3 AND leave_time IS NULL
		ORDER BY join_time DESC LIMIT 1`,
		appID, channel, uid,
	)
	s, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return store.SessionRow{}, false, nil
	}
	if err != nil {
		return store.SessionRow{}, false, err
	}
	return s, true, nil
}

func (c *conn) InsertSession(ctx context.Context, row store.SessionRow) (int64, error) {
	var id int64
	err := c.q.QueryRow(ctx, `
		INSERT INTO sessions (app_id, channel, epoch_kind, epoch_ts, uid, join_time, leave_time,
			duration_seconds, is_host, communication_mode, role_switches, last_client_seq,
			platform, client_type, reason, sid, account)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id`,
		row.AppID, row.Channel, int(row.Epoch.Kind), row.Epoch.Ts, row.UID, row.JoinTime, row.LeaveTime,
		row.DurationSeconds, row.IsHost, row.CommunicationMode, row.RoleSwitches, row.LastClientSeq,
		row.Platform, row.ClientType, row.Reason, row.Sid, row.Account,
	).Scan(&id)
	return id, err
}

func (c *conn) UpdateSession(ctx context.Context, row store.SessionRow) error {
	tag, err := c.q.Exec(ctx, `
		UPDATE sessions SET leave_time = $1, duration_seconds = $2, role_switches = $3,
			last_client_seq = $4, platform = $5, client_type = $6, reason = $7,
			join_time = $8, is_host = $9
		WHERE id = $10`,
		row.LeaveTime, row.DurationSeconds, row.RoleSwitches, row.LastClientSeq,
		row.Platform, row.ClientType, row.Reason, row.JoinTime, row.IsHost, row.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *conn) ListChannelSessions(ctx context.Context, appID, channel string, epoch *store.EpochID, limit int) ([]store.SessionRow, error) {
	var rows pgx.Rows
	var err error
	if epoch != nil {
		rows, err = c.q.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
			WHERE app_id = $1 AND channel = $2 AND epoch_kind = $3 AND epoch_ts = $4
			ORDER BY join_time ASC LIMIT $5`,
			appID, channel, int(epoch.Kind), epoch.Ts, nullIfZero(limit),
		)
	} else {
		rows, err = c.q.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
			WHERE app_id = $1 AND channel = $2
			ORDER BY join_time ASC LIMIT $3`,
			appID, channel, nullIfZero(limit),
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func (c *conn) ListUserSessions(ctx context.Context, appID string, uid int, limit int) ([]store.SessionRow, error) {
	rows, err := c.q.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE app_id = $1 AND uid = $2
		ORDER BY join_time ASC LIMIT $3`,
		appID, uid, nullIfZero(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows pgx.Rows) ([]store.SessionRow, error) {
	var out []store.SessionRow
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// nullIfZero turns a non-positive limit into "no limit" (Postgres treats a
// NULL LIMIT as unbounded), matching memstore's `if limit > 0` convention.
func nullIfZero(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (c *conn) InsertRoleEvent(ctx context.Context, row store.RoleEventRow) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO role_events (app_id, channel, epoch_kind, epoch_ts, uid, ts, new_role)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		row.AppID, row.Channel, int(row.Epoch.Kind), row.Epoch.Ts, row.UID, row.Ts, int(row.NewRole),
	)
	return err
}

func (c *conn) QueryRoleEvents(ctx context.Context, appID string, epoch store.EpochID, uid int, fromTs, toTs int64) ([]store.RoleEventRow, error) {
	rows, err := c.q.Query(ctx, `
		SELECT app_id, channel, epoch_kind, epoch_ts, uid, ts, new_role
		FROM role_events
		WHERE app_id = $1 AND epoch_kind = $2 AND epoch_ts = $3 AND uid = $4 AND ts BETWEEN $5 AND $6
		ORDER BY ts ASC`,
		appID, int(epoch.Kind), epoch.Ts, uid, fromTs, toTs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RoleEventRow
	for rows.Next() {
		var re store.RoleEventRow
		var kind, role int
		if err := rows.Scan(&re.AppID, &re.Channel, &kind, &re.Epoch.Ts, &re.UID, &re.Ts, &role); err != nil {
			return nil, err
		}
		re.Epoch = store.EpochID{AppID: re.AppID, Channel: re.Channel, Kind: store.EpochKind(kind), Ts: re.Epoch.Ts}
		re.NewRole = mapping.Role(role)
		out = append(out, re)
	}
	return out, rows.Err()
}

func (c *conn) UpsertChannelDailyAggregate(ctx context.Context, appID, channel string, epoch store.EpochID, day string) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO channel_daily_agg (app_id, channel, epoch_kind, epoch_ts, day,
			total_minutes, unique_users, first_activity, last_activity)
		SELECT $1, $2, $3, $4, $5,
			COALESCE(SUM(CASE WHEN leave_time IS NOT NULL THEN (leave_time - join_time) / 60.0 ELSE 0 END), 0),
			COUNT(DISTINCT uid),
			COALESCE(MIN(join_time), 0),
			COALESCE(MAX(COALESCE(leave_time, join_time)), 0)
		FROM sessions
		WHERE app_id = $1 AND channel = $2 AND epoch_kind = $3 AND epoch_ts = $4
			AND (to_char(to_timestamp(join_time) AT TIME ZONE 'UTC', 'YYYY-MM-DD') = $5
				OR to_char(to_timestamp(COALESCE(leave_time, join_time)) AT TIME ZONE 'UTC', 'YYYY-MM-DD') = $5)
		ON CONFLICT (app_id, channel, epoch_kind, epoch_ts, day) DO UPDATE SET
			total_minutes = EXCLUDED.total_minutes,
			unique_users = EXCLUDED.unique_users,
			first_activity = EXCLUDED.first_activity,
			last_activity = EXCLUDED.last_activity`,
		appID, channel, int(epoch.Kind), epoch.Ts, day,
	)
	return err
}

func (c *conn) UpsertUserDailyAggregate(ctx context.Context, appID, channel string, epoch store.EpochID, uid int, day string) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO user_daily_agg (app_id, channel, epoch_kind, epoch_ts, uid, day,
			total_minutes, first_activity, last_activity)
		SELECT $1, $2, $3, $4, $5, $6,
			COALESCE(SUM(CASE WHEN leave_time IS NOT NULL THEN (leave_time - join_time) / 60.0 ELSE 0 END), 0),
			COALESCE(MIN(join_time), 0),
			COALESCE(MAX(COALESCE(leave_time, join_time)), 0)
		FROM sessions
		WHERE app_id = $1 AND channel = $2 AND epoch_kind = $3 AND epoch_ts = $4 AND uid = $5
			AND (to_char(to_timestamp(join_time) AT TIME ZONE 'UTC', 'YYYY-MM-DD') = $6
				OR to_char(to_timestamp(COALESCE(leave_time, join_time)) AT TIME ZONE 'UTC', 'YYYY-MM-DD') = $6)
		ON CONFLICT (app_id, channel, epoch_kind, epoch_ts, uid, day) DO UPDATE SET
			total_minutes = EXCLUDED.total_minutes,
			first_activity = EXCLUDED.first_activity,
			last_activity = EXCLUDED.last_activity`,
		appID, channel, int(epoch.Kind), epoch.Ts, uid, day,
	)
	return err
}

func (c *conn) ListChannelEpochs(ctx context.Context, appID string, limit, offset int) ([]store.EpochSummary, int, error) {
	var total int
	if err := c.q.QueryRow(ctx, `SELECT COUNT(*) FROM channel_epochs WHERE app_id = $1`, appID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := c.q.Query(ctx, `
		SELECT e.app_id, e.channel, e.kind, e.created_ts, e.destroyed_ts,
			COALESCE(s.session_count, 0),
			COALESCE(s.last_activity, e.created_ts)
		FROM channel_epochs e
		LEFT JOIN (
			SELECT app_id, channel, epoch_kind, epoch_ts, COUNT(*) AS session_count,
				MAX(COALESCE(leave_time, join_time)) AS last_activity
			FROM sessions
			GROUP BY app_id, channel, epoch_kind, epoch_ts
		) s ON s.app_id = e.app_id AND s.channel = e.channel AND s.epoch_kind = e.kind AND s.epoch_ts = e.created_ts
		WHERE e.app_id = $1
		ORDER BY last_activity DESC
		LIMIT $2 OFFSET $3`,
		appID, nullIfZero(limit), offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []store.EpochSummary
	for rows.Next() {
		var summary store.EpochSummary
		var kind int
		if err := rows.Scan(&summary.Epoch.AppID, &summary.Epoch.Channel, &kind, &summary.Epoch.CreatedTs,
			&summary.Epoch.DestroyedTs, &summary.SessionCount, &summary.LastActivity); err != nil {
			return nil, 0, err
		}
		summary.Epoch.ID = store.EpochID{
			AppID: summary.Epoch.AppID, Channel: summary.Epoch.Channel,
			Kind: store.EpochKind(kind), Ts: summary.Epoch.CreatedTs,
		}
		out = append(out, summary)
	}
	return out, total, rows.Err()
}
