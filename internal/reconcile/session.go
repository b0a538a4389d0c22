package reconcile

import (
	"context"
	"math"

	"github.com/snarg/rtc-engine/internal/mapping"
	"github.com/snarg/rtc-engine/internal/store"
)

// handleJoin implements spec.md §4.1.4's join-handling rules for a resolved
// epoch. n.UID and n.ClientSeq are guaranteed non-nil by the caller.
func handleJoin(ctx context.Context, tx store.Store, epoch store.EpochID, n Notification) error {
	uid := *n.UID
	clientSeq := *n.ClientSeq

	existing, ok, err := tx.FindOpenSession(ctx, n.AppID, epoch, uid)
	if err != nil {
		return err
	}
	if ok {
		switch {
		case clientSeq <= existing.LastClientSeq:
			return nil // stale/duplicate
		case n.Ts < existing.JoinTime:
			existing.JoinTime = n.Ts
			existing.LastClientSeq = clientSeq
		default:
			existing.JoinTime = n.Ts // reconnection heartbeat
			existing.LastClientSeq = clientSeq
		}
		return tx.UpdateSession(ctx, existing)
	}

	// A leave with a later client_seq may already have closed (or
	// synthesized) the session this join opens; such a join is stale.
	closed, err := tx.ListChannelSessions(ctx, n.AppID, n.ChannelName, &epoch, 0)
	if err != nil {
		return err
	}
	for _, s := range closed {
		if s.UID == uid && s.LeaveTime != nil && clientSeq <= s.LastClientSeq && n.Ts <= *s.LeaveTime {
			return nil
		}
	}

	role, commMode, ok := mapping.InitialRole(n.EventType)
	if !ok {
		role, commMode = mapping.RoleAudience, 0
	}

	row := store.SessionRow{
		AppID: n.AppID, Channel: n.ChannelName, Epoch: epoch, UID: uid,
		JoinTime: n.Ts, IsHost: role == mapping.RoleHost, CommunicationMode: commMode,
		LastClientSeq: clientSeq, Platform: n.Platform, ClientType: n.ClientType, Sid: n.Sid,
	}
	id, err := tx.InsertSession(ctx, row)
	if err != nil {
		return err
	}
	row.ID = id

	queued, err := tx.QueryRoleEvents(ctx, n.AppID, epoch, uid, n.Ts, math.MaxInt64)
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		return nil
	}
	for _, re := range queued {
		row.IsHost = re.NewRole == mapping.RoleHost
		row.RoleSwitches++
	}
	return tx.UpdateSession(ctx, row)
}

// handleLeave implements spec.md §4.1.4's leave-handling rules. Returns
// ErrOrphanLeave when no open session exists and no duration is present to
// synthesize one (dropped by the caller as a logic-skip, raw row still kept).
func handleLeave(ctx context.Context, tx store.Store, epoch store.EpochID, n Notification) error {
	uid := *n.UID

	existing, ok, err := tx.FindOpenSessionAnyEpoch(ctx, n.AppID, n.ChannelName, uid)
	if err != nil {
		return err
	}
	if ok {
		if n.Ts < existing.JoinTime && n.Duration != nil {
			existing.JoinTime = n.Ts - *n.Duration
		}
		leaveTs := n.Ts
		dur := leaveTs - existing.JoinTime
		existing.LeaveTime = &leaveTs
		existing.DurationSeconds = &dur
		existing.Reason = n.Reason
		return tx.UpdateSession(ctx, existing)
	}

	if n.Duration == nil {
		return ErrOrphanLeave
	}

	role, commMode, ok := mapping.InitialRoleForLeave(n.EventType)
	if !ok {
		role, commMode = mapping.RoleAudience, 0
	}
	joinTs := n.Ts - *n.Duration
	leaveTs := n.Ts
	dur := leaveTs - joinTs
	row := store.SessionRow{
		AppID: n.AppID, Channel: n.ChannelName, Epoch: epoch, UID: uid,
		JoinTime: joinTs, LeaveTime: &leaveTs, DurationSeconds: &dur,
		IsHost: role == mapping.RoleHost, CommunicationMode: commMode,
		Platform: n.Platform, ClientType: n.ClientType, Reason: n.Reason, Sid: n.Sid,
	}
	if n.ClientSeq != nil {
		row.LastClientSeq = *n.ClientSeq
	}
	_, err = tx.InsertSession(ctx, row)
	return err
}

// handleRoleChange implements spec.md §4.1.4's role-change rule: always
// append the role event, then apply it immediately if an open session
// exists (matched by epoch first, then by channel+uid), else leave it
// queued for the next matching join.
func handleRoleChange(ctx context.Context, tx store.Store, epoch store.EpochID, n Notification) error {
	uid := *n.UID
	newRole, ok := mapping.RoleFromSwitch(n.EventType)
	if !ok {
		return nil
	}

	if err := tx.InsertRoleEvent(ctx, store.RoleEventRow{
		AppID: n.AppID, Channel: n.ChannelName, Epoch: epoch, UID: uid, Ts: n.Ts, NewRole: newRole,
	}); err != nil {
		return err
	}

	existing, found, err := tx.FindOpenSession(ctx, n.AppID, epoch, uid)
	if err != nil {
		return err
	}
	if !found {
		existing, found, err = tx.FindOpenSessionAnyEpoch(ctx, n.AppID, n.ChannelName, uid)
		if err != nil {
			return err
		}
	}
	if !found {
		return nil
	}

	existing.IsHost = newRole == mapping.RoleHost
	existing.RoleSwitches++
	return tx.UpdateSession(ctx, existing)
}
