package reconcile

import (
	"context"
	"sort"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

// resolveEpoch implements spec.md §4.1.2's channel-epoch resolution table
// and lookup ladder. Callers must hold the per-channel lock for
// (appID, channel) before calling this. resolved is false only for a 102
// with no matching active entry (spec.md §4.4's "bare destroy").
func resolveEpoch(ctx context.Context, tx store.Store, active *activeEpochMap, appID, channel string, eventType mapping.EventType, ts int64) (id store.EpochID, resolved bool, err error) {
	switch eventType {
	case mapping.EventChannelCreated:
		newID := store.Confirmed(appID, channel, ts)
		if err := tx.CreateEpoch(ctx, store.ChannelEpochRow{AppID: appID, Channel: channel, ID: newID, CreatedTs: ts}); err != nil {
			return store.EpochID{}, false, err
		}
		active.Set(appID, channel, newID)
		if err := mergeProvisional(ctx, tx, appID, channel, newID, ts); err != nil {
			return store.EpochID{}, false, err
		}
		return newID, true, nil

	case mapping.EventChannelDestroyed:
		cur, ok := active.Get(appID, channel)
		if !ok {
			return store.EpochID{}, false, nil
		}
		active.Unset(appID, channel)
		if err := tx.CloseEpoch(ctx, appID, cur, ts); err != nil {
			return store.EpochID{}, false, err
		}
		return cur, true, nil

	default:
		if cur, ok := active.Get(appID, channel); ok {
			return cur, true, nil
		}
		return lookupLadder(ctx, tx, active, appID, channel, eventType, ts)
	}
}

func lookupLadder(ctx context.Context, tx store.Store, active *activeEpochMap, appID, channel string, eventType mapping.EventType, ts int64) (store.EpochID, bool, error) {
	epochs, err := tx.ListEpochsForChannel(ctx, appID, channel)
	if err != nil {
		return store.EpochID{}, false, err
	}

	// (a) newest confirmed epoch covering ts with no intervening destroy.
	if id, ok := ladderRuleA(epochs, ts); ok {
		active.Set(appID, channel, id)
		return id, true, nil
	}

	// (b) leave events only: most recently closed confirmed epoch ending at or before ts.
	if mapping.IsLeave(eventType) {
		if id, ok := ladderRuleB(epochs, ts); ok {
			return id, true, nil
		}
	}

	// (c) destroy at exactly ts with a create before it (same-timestamp edge case).
	if id, ok := ladderRuleC(epochs, ts); ok {
		active.Set(appID, channel, id)
		return id, true, nil
	}

	// (d) reuse the most recent reusable provisional epoch.
	if id, ok := ladderRuleD(epochs, ts); ok {
		active.Set(appID, channel, id)
		return id, true, nil
	}

	// (e) allocate a fresh provisional epoch.
	newID := store.Provisional(appID, channel, ts)
	if err := tx.CreateEpoch(ctx, store.ChannelEpochRow{AppID: appID, Channel: channel, ID: newID, CreatedTs: ts}); err != nil {
		return store.EpochID{}, false, err
	}
	active.Set(appID, channel, newID)
	return newID, true, nil
}

func ladderRuleA(epochs []store.ChannelEpochRow, ts int64) (store.EpochID, bool) {
	var best *store.ChannelEpochRow
	for i := range epochs {
		e := &epochs[i]
		if e.ID.Kind != store.EpochConfirmed || e.CreatedTs > ts {
			continue
		}
		if e.DestroyedTs != nil && *e.DestroyedTs <= ts {
			continue // destroyed at or before ts: doesn't cover ts
		}
		if best == nil || e.CreatedTs > best.CreatedTs {
			best = e
		}
	}
	if best == nil {
		return store.EpochID{}, false
	}
	return best.ID, true
}

func ladderRuleB(epochs []store.ChannelEpochRow, ts int64) (store.EpochID, bool) {
	var best *store.ChannelEpochRow
	for i := range epochs {
		e := &epochs[i]
		if e.ID.Kind != store.EpochConfirmed || e.DestroyedTs == nil {
			continue
		}
		if *e.DestroyedTs > ts || e.CreatedTs >= *e.DestroyedTs {
			continue
		}
		if best == nil || *e.DestroyedTs > *best.DestroyedTs {
			best = e
		}
	}
	if best == nil {
		return store.EpochID{}, false
	}
	return best.ID, true
}

func ladderRuleC(epochs []store.ChannelEpochRow, ts int64) (store.EpochID, bool) {
	for i := range epochs {
		e := &epochs[i]
		if e.ID.Kind == store.EpochConfirmed && e.DestroyedTs != nil && *e.DestroyedTs == ts && e.CreatedTs < ts {
			return e.ID, true
		}
	}
	return store.EpochID{}, false
}

func ladderRuleD(epochs []store.ChannelEpochRow, ts int64) (store.EpochID, bool) {
	var best *store.ChannelEpochRow
	for i := range epochs {
		e := &epochs[i]
		if e.ID.Kind != store.EpochProvisional || e.ID.Ts > ts {
			continue
		}
		if best == nil || e.ID.Ts > best.ID.Ts {
			best = e
		}
	}
	if best == nil {
		return store.EpochID{}, false
	}
	// not reusable if a destroy occurred in (ts_p, ts)
	for i := range epochs {
		e := &epochs[i]
		if e.ID.Kind == store.EpochConfirmed && e.DestroyedTs != nil && *e.DestroyedTs > best.ID.Ts && *e.DestroyedTs < ts {
			return store.EpochID{}, false
		}
	}
	return best.ID, true
}

// mergeProvisional relabels provisional rows into the newly confirmed epoch
// (and, where applicable, into the preceding confirmed epoch) per
// spec.md §4.1.2's "provisional merge" rule.
func mergeProvisional(ctx context.Context, tx store.Store, appID, channel string, newID store.EpochID, tsC int64) error {
	epochs, err := tx.ListEpochsForChannel(ctx, appID, channel)
	if err != nil {
		return err
	}
	sort.Slice(epochs, func(i, j int) bool { return epochs[i].ID.Ts < epochs[j].ID.Ts })

	var nextCreateTs *int64
	var prevID store.EpochID
	var prevDestroyTs int64
	havePrev := false
	for i := range epochs {
		e := &epochs[i]
		if e.ID.Kind != store.EpochConfirmed || e.ID == newID {
			continue
		}
		if e.CreatedTs > tsC {
			if nextCreateTs == nil || e.CreatedTs < *nextCreateTs {
				ts := e.CreatedTs
				nextCreateTs = &ts
			}
		} else if e.CreatedTs < tsC && e.DestroyedTs != nil {
			if !havePrev || *e.DestroyedTs > prevDestroyTs {
				prevID = e.ID
				prevDestroyTs = *e.DestroyedTs
				havePrev = true
			}
		}
	}

	for i := range epochs {
		e := &epochs[i]
		if e.ID.Kind != store.EpochProvisional {
			continue
		}
		if _, err := tx.RelabelEpoch(ctx, appID, channel, e.ID, newID, tsC, nextCreateTs); err != nil {
			return err
		}
		if havePrev {
			tsCCopy := tsC
			if _, err := tx.RelabelEpoch(ctx, appID, channel, e.ID, prevID, prevDestroyTs, &tsCCopy); err != nil {
				return err
			}
		}
	}
	return nil
}
