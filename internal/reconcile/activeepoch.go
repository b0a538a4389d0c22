package reconcile

import (
	"sync"

	"github.com/snarg/rtc-engine/internal/store"
)

// activeEpochMap is the in-memory (app_id, channel_name) → active epoch
// mirror (spec.md §4.1.2, §5). It is an optimization over re-deriving the
// active epoch from store rows on every notification; callers must hold the
// per-channel lock (chanLockMap) before mutating an entry so the read-then-
// write sequence in resolveEpoch stays single-threaded per channel. The
// map's own mutex only protects the Go map data structure itself against
// concurrent access from *different* channels.
type activeEpochMap struct {
	mu    sync.RWMutex
	items map[string]store.EpochID
}

func newActiveEpochMap() *activeEpochMap {
	return &activeEpochMap{items: make(map[string]store.EpochID)}
}

func activeKey(appID, channel string) string {
	return appID + "\x00" + channel
}

func (m *activeEpochMap) Get(appID, channel string) (store.EpochID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.items[activeKey(appID, channel)]
	return id, ok
}

func (m *activeEpochMap) Set(appID, channel string, id store.EpochID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[activeKey(appID, channel)] = id
}

func (m *activeEpochMap) Unset(appID, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, activeKey(appID, channel))
}

// Len reports the number of channels with a currently-tracked active epoch.
func (m *activeEpochMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
