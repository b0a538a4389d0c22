package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

// Config tunes the engine's resilience and resource parameters
// (SPEC_FULL.md §4.1, §5). Zero values fall back to the spec's defaults.
type Config struct {
	DedupMemoSize int

	StoreRetryMaxAttempts int
	StoreRetryInitialWait time.Duration
	BreakerFailureThresh  uint32
	BreakerOpenTimeout    time.Duration
}

func (c Config) withDefaults() Config {
	if c.DedupMemoSize <= 0 {
		c.DedupMemoSize = 10
	}
	if c.StoreRetryMaxAttempts <= 0 {
		c.StoreRetryMaxAttempts = 3
	}
	if c.StoreRetryInitialWait <= 0 {
		c.StoreRetryInitialWait = 50 * time.Millisecond
	}
	if c.BreakerFailureThresh == 0 {
		c.BreakerFailureThresh = 5
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = 30 * time.Second
	}
	return c
}

// Engine is the reconciliation core from spec.md §4.1: one entry point,
// Ingest, deduplicating, resolving channel epochs, and mutating session and
// role-event state. Safe for concurrent use (spec.md §5).
type Engine struct {
	store  store.Store
	dedup  *dedupMemo
	active *activeEpochMap
	chans  *chanLockMap
	events *eventBus
	cb     *gobreaker.CircuitBreaker[any]
	cfg    Config
}

// New builds an Engine backed by s. cfg supplies resilience/resource
// tuning; zero-value Config uses spec.md's defaults.
func New(s store.Store, cfg Config) *Engine {
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:    "rtc-engine-store",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThresh
		},
	}

	return &Engine{
		store:  s,
		dedup:  newDedupMemo(cfg.DedupMemoSize),
		active: newActiveEpochMap(),
		chans:  newChanLockMap(),
		events: newEventBus(),
		cb:     gobreaker.NewCircuitBreaker[any](settings),
		cfg:    cfg,
	}
}

// Close releases the engine's internal event bus.
func (e *Engine) Close() error {
	return e.events.Close()
}

// Events exposes the internal domain-event bus for metrics/debug
// subscribers (SPEC_FULL.md §6.bis).
func (e *Engine) Events() message.Subscriber {
	return e.events.Subscriber()
}

// DedupMemoLen reports the current dedup memo size, for metrics.
func (e *Engine) DedupMemoLen() int {
	return e.dedup.Len()
}

// BreakerState reports the store circuit breaker's current state, for metrics.
func (e *Engine) BreakerState() string {
	return e.cb.State().String()
}

// ActiveEpochCount reports the number of channels with a currently-tracked
// active epoch, for metrics.
func (e *Engine) ActiveEpochCount() int {
	return e.active.Len()
}

// Ingest implements spec.md §4.1: exactly-once-per-call processing of one
// notification, atomic with respect to the store.
func (e *Engine) Ingest(ctx context.Context, n Notification) (Outcome, error) {
	if err := validate(n); err != nil {
		return Rejected, err
	}

	if e.dedup.Contains(n.NoticeID) {
		return Duplicate, ErrDuplicate
	}
	if _, found, err := e.storeFindRawByNoticeID(ctx, n.AppID, n.NoticeID); err != nil {
		return Rejected, err
	} else if found {
		e.dedup.Add(n.NoticeID) // backfill memo so the next lookup is in-memory
		return Duplicate, ErrDuplicate
	}

	e.dedup.Add(n.NoticeID)

	unlock := e.chans.Lock(n.AppID, n.ChannelName)
	defer unlock()

	var epochID store.EpochID
	var resolved bool

	err := e.withResilience(ctx, func(ctx context.Context) error {
		return e.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
			id, ok, err := resolveEpoch(ctx, tx, e.active, n.AppID, n.ChannelName, n.EventType, n.Ts)
			if err != nil {
				return err
			}
			epochID, resolved = id, ok

			sessionID := ""
			if resolved {
				sessionID = id.String()
			}
			if err := tx.InsertRawEvent(ctx, rawEventRow(n, sessionID)); err != nil {
				return err
			}
			if !resolved {
				return nil // bare destroy, nothing further to do
			}

			if err := e.mutateSession(ctx, tx, id, n); err != nil && !errors.Is(err, ErrLogicSkip) {
				return err
			}

			return upsertAggregates(ctx, tx, n.AppID, n.ChannelName, id, n.UID, n.Ts)
		})
	})
	if err != nil {
		e.dedup.Remove(n.NoticeID)
		return Rejected, err
	}

	e.publishOutcome(n, epochID, resolved)
	return Accepted, nil
}

// mutateSession dispatches to the join/leave/role-change handlers per
// spec.md §4.1.4. Events missing uid/clientSeq on a user-event type are a
// logic-skip (raw already persisted by the caller).
func (e *Engine) mutateSession(ctx context.Context, tx store.Store, epoch store.EpochID, n Notification) error {
	switch {
	case mapping.IsJoin(n.EventType):
		if n.UID == nil || n.ClientSeq == nil {
			return ErrLogicSkip
		}
		return handleJoin(ctx, tx, epoch, n)
	case mapping.IsLeave(n.EventType):
		if n.UID == nil || n.ClientSeq == nil {
			return ErrLogicSkip
		}
		if err := handleLeave(ctx, tx, epoch, n); err != nil {
			if errors.Is(err, ErrOrphanLeave) {
				return ErrLogicSkip
			}
			return err
		}
		return nil
	case mapping.IsRoleChange(n.EventType):
		if n.UID == nil || n.ClientSeq == nil {
			return ErrLogicSkip
		}
		return handleRoleChange(ctx, tx, epoch, n)
	default:
		return nil // unknown event type: raw persisted, otherwise ignored
	}
}

func (e *Engine) storeFindRawByNoticeID(ctx context.Context, appID, noticeID string) (store.RawEventRow, bool, error) {
	var row store.RawEventRow
	var found bool
	err := e.withResilience(ctx, func(ctx context.Context) error {
		var err error
		row, found, err = e.store.FindRawByNoticeID(ctx, appID, noticeID)
		return err
	})
	return row, found, err
}

// withResilience wraps a store operation in bounded exponential backoff
// retry plus a circuit breaker (SPEC_FULL.md §4.1 store-call resilience).
// Only errors satisfying store.TemporaryError are retried; anything else
// (including validation/logic errors surfaced through the same closure)
// fails immediately.
func (e *Engine) withResilience(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := e.cb.Execute(func() (any, error) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = e.cfg.StoreRetryInitialWait
		bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.StoreRetryMaxAttempts)), ctx)

		operr := backoff.Retry(func() error {
			err := fn(ctx)
			if err == nil {
				return nil
			}
			var temp store.TemporaryError
			if errors.As(err, &temp) && temp.Temporary() {
				return err // retryable
			}
			return backoff.Permanent(err)
		}, bo)
		return nil, operr
	})
	return err
}

func rawEventRow(n Notification, channelSessionID string) store.RawEventRow {
	return store.RawEventRow{
		AppID: n.AppID, NoticeID: n.NoticeID, ProductID: n.ProductID, EventType: n.EventType,
		NotifyMs: n.NotifyMs, Sid: n.Sid, ChannelName: n.ChannelName, Ts: n.Ts,
		UID: n.UID, ClientSeq: n.ClientSeq, Platform: n.Platform, ClientType: n.ClientType,
		Reason: n.Reason, Duration: n.Duration, ChannelSessionID: channelSessionID, RawPayload: n.RawPayload,
	}
}

func (e *Engine) publishOutcome(n Notification, epoch store.EpochID, resolved bool) {
	if !resolved {
		return
	}
	switch n.EventType {
	case mapping.EventChannelCreated:
		e.events.publish(TopicEpochOpened, []byte(epoch.String()))
	case mapping.EventChannelDestroyed:
		e.events.publish(TopicEpochClosed, []byte(epoch.String()))
	default:
		if mapping.IsLeave(n.EventType) {
			e.events.publish(TopicSessionClosed, []byte(fmt.Sprintf("%s:%d", epoch.String(), derefInt(n.UID))))
		}
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
