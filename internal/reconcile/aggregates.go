package reconcile

import (
	"context"
	"time"

	"github.com/snarg/rtc-engine/internal/store"
)

// upsertAggregates implements spec.md §4.1.5: after a notification's
// session mutations, idempotently recompute the per-day roll-ups touched by
// this event. Recomputation reads all sessions for the affected keys and
// overwrites totals; it never increments in place, so re-running it for the
// same (epoch, day) is always safe.
func upsertAggregates(ctx context.Context, tx store.Store, appID, channel string, epoch store.EpochID, uid *int, ts int64) error {
	day := time.Unix(ts, 0).UTC().Format("2006-01-02")

	if err := tx.UpsertChannelDailyAggregate(ctx, appID, channel, epoch, day); err != nil {
		return err
	}
	if uid != nil {
		if err := tx.UpsertUserDailyAggregate(ctx, appID, channel, epoch, *uid, day); err != nil {
			return err
		}
	}
	return nil
}
