// Package store defines the repository contract the reconciliation and
// analytics engines depend on (spec §4.3), plus the row types that contract
// moves. Two implementations satisfy Store: postgres (production) and
// memstore (tests) — the domain core never imports either directly.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// TemporaryError marks an error as transient — the caller should retry
// after rollback (spec §4.4 "store-transient"). Neither the postgres nor
// the memstore implementation wraps its errors in such a type; an error
// counts as transient only when its wrap chain already carries a
// Temporary method.
type TemporaryError interface {
	Temporary() bool
}

// Store is the full repository contract the core requires (spec §4.3).
// Every method is safe for concurrent use; callers provide the
// per-notification atomicity boundary via Tx.
type Store interface {
	// Tx runs fn inside one atomic transaction; all writes fn performs via
	// the Store passed to it commit together or not at all (spec §4.1.6).
	Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	InsertRawEvent(ctx context.Context, row RawEventRow) error
	FindRawByNoticeID(ctx context.Context, appID, noticeID string) (RawEventRow, bool, error)
	// FindJoinWebhooksForEpoch returns uid's raw join-event rows (channel-created,
	// host/audience join) in [fromTs, toTs], for the initial-role fuzzy match in
	// spec.md §4.2.1.
	FindJoinWebhooksForEpoch(ctx context.Context, appID string, epoch EpochID, uid int, fromTs, toTs int64) ([]RawEventRow, error)

	CreateEpoch(ctx context.Context, row ChannelEpochRow) error
	CloseEpoch(ctx context.Context, appID string, epoch EpochID, destroyedTs int64) error
	ListEpochsForChannel(ctx context.Context, appID, channel string) ([]ChannelEpochRow, error)
	RelabelEpoch(ctx context.Context, appID, channel string, from, to EpochID, fromTs int64, toTs *int64) (int, error)

	FindOpenSession(ctx context.Context, appID string, epoch EpochID, uid int) (SessionRow, bool, error)
	FindOpenSessionAnyEpoch(ctx context.Context, appID, channel string, uid int) (SessionRow, bool, error)
	InsertSession(ctx context.Context, row SessionRow) (int64, error)
	UpdateSession(ctx context.Context, row SessionRow) error
	ListChannelSessions(ctx context.Context, appID, channel string, epoch *EpochID, limit int) ([]SessionRow, error)
	ListUserSessions(ctx context.Context, appID string, uid int, limit int) ([]SessionRow, error)

	InsertRoleEvent(ctx context.Context, row RoleEventRow) error
	QueryRoleEvents(ctx context.Context, appID string, epoch EpochID, uid int, fromTs, toTs int64) ([]RoleEventRow, error)

	UpsertChannelDailyAggregate(ctx context.Context, appID, channel string, epoch EpochID, day string) error
	UpsertUserDailyAggregate(ctx context.Context, appID, channel string, epoch EpochID, uid int, day string) error

	ListChannelEpochs(ctx context.Context, appID string, limit, offset int) ([]EpochSummary, int, error)
}
