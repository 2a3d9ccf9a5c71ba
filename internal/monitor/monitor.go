package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/watchxrpl/watchxrpl/internal/logger"
	"github.com/watchxrpl/watchxrpl/internal/store"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

// NodeUpdate is one refresh of everything the dashboard shows.
type NodeUpdate struct {
	Snapshot    *xrpl.Snapshot
	PeerSummary xrpl.PeerSummary
	Stats       []store.WindowStats
	Transitions []store.StateTransition
	Err         error
	FetchedAt   time.Time
}

// Monitor refreshes validator status and stored history for the dashboard.
type Monitor struct {
	client          xrpl.Client
	store           store.Store
	windows         []int
	refreshInterval time.Duration

	mu         sync.RWMutex
	latest     NodeUpdate
	updateChan chan NodeUpdate
}

func NewMonitor(client xrpl.Client, st store.Store, windows []int, refreshInterval time.Duration) *Monitor {
	return &Monitor{
		client:          client,
		store:           st,
		windows:         windows,
		refreshInterval: refreshInterval,
		updateChan:      make(chan NodeUpdate, 1),
	}
}

func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	m.update(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.update(ctx)
		}
	}
}

func (m *Monitor) update(ctx context.Context) {
	updateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result := NodeUpdate{FetchedAt: time.Now()}

	resp, err := m.client.ServerInfo(updateCtx)
	if err != nil {
		result.Err = err
	} else {
		result.Snapshot = xrpl.NewSnapshot(resp)
		if peers, err := m.client.Peers(updateCtx); err == nil {
			result.PeerSummary = xrpl.SummarizePeers(peers)
		}
	}

	for _, hours := range m.windows {
		stats, err := m.store.ValidationStats(updateCtx, hours)
		if err != nil {
			logger.Debug("Dashboard stats refresh failed for %dh window: %v", hours, err)
			continue
		}
		result.Stats = append(result.Stats, *stats)
	}

	transitions, err := m.store.RecentTransitions(updateCtx, 8)
	if err != nil {
		logger.Debug("Dashboard transition refresh failed: %v", err)
	} else {
		result.Transitions = transitions
	}

	m.mu.Lock()
	m.latest = result
	m.mu.Unlock()

	select {
	case m.updateChan <- result:
	default:
	}
}

// Latest returns the most recent refresh.
func (m *Monitor) Latest() NodeUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func (m *Monitor) Updates() <-chan NodeUpdate {
	return m.updateChan
}

func (m *Monitor) GetRefreshInterval() time.Duration {
	return m.refreshInterval
}
