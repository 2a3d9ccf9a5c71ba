// Copyright © 2025 Attestant Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/watchxrpl/watchxrpl/internal/alert"
	"github.com/watchxrpl/watchxrpl/internal/export"
	"github.com/watchxrpl/watchxrpl/internal/logger"
	"github.com/watchxrpl/watchxrpl/internal/store"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

// Config carries the poll-loop tunables.
type Config struct {
	Interval         time.Duration
	RPCTimeout       time.Duration
	FailureThreshold int
	StatsEvery       int
	PeerDetailEvery  int
	StatsWindows     []int
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 3 * time.Second
	}
	if c.RPCTimeout <= 0 {
		c.RPCTimeout = 10 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 2
	}
	if c.StatsEvery <= 0 {
		c.StatsEvery = 10
	}
	if c.PeerDetailEvery <= 0 {
		c.PeerDetailEvery = 10
	}
	if len(c.StatsWindows) == 0 {
		c.StatsWindows = []int{1, 24}
	}
}

// Summary is the run-level accounting printed when the loop stops.
type Summary struct {
	Polls              int
	StateChanges       int
	AlertsSent         int
	APIErrors          int
	ValidationsChecked int
}

// Poller runs the poll cycle: fetch a status snapshot, reconcile counters,
// back-check elapsed ledgers, track state transitions, refresh rolling stats,
// and push everything to the storage/metrics/alert collaborators. All mutable
// state is owned by the single goroutine running the loop.
type Poller struct {
	client   xrpl.Client
	store    store.Store
	notifier alert.Notifier
	exporter *export.Exporter // optional

	cfg Config
	now func() time.Time

	lastState      xrpl.State
	stateEnteredAt time.Time
	lastLedgerSeq  int64

	gaps                *gapTracker
	peerDisconnects     cumulativeCounter
	resourceDisconnects cumulativeCounter
	jqOverflow          cumulativeCounter

	consecutiveErrors int
	infoPublished     bool

	pollCount          int
	stateChanges       int
	validationsChecked int
	alertsSent         int
	apiErrors          int
}

// New creates a poller. The exporter may be nil when metrics export is
// disabled.
func New(client xrpl.Client, st store.Store, notifier alert.Notifier, exporter *export.Exporter, cfg Config) *Poller {
	cfg.applyDefaults()
	return &Poller{
		client:   client,
		store:    st,
		notifier: notifier,
		exporter: exporter,
		cfg:      cfg,
		now:      time.Now,
		gaps:     newGapTracker(),
	}
}

// Run polls on the configured interval until the context is cancelled. One
// cycle runs to completion before the next begins.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// Summary returns the run-level counters.
func (p *Poller) Summary() Summary {
	return Summary{
		Polls:              p.pollCount,
		StateChanges:       p.stateChanges,
		AlertsSent:         p.alertsSent,
		APIErrors:          p.apiErrors,
		ValidationsChecked: p.validationsChecked,
	}
}

// PollOnce runs a single poll cycle.
func (p *Poller) PollOnce(ctx context.Context) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RPCTimeout)
	resp, err := p.client.ServerInfo(callCtx)
	cancel()
	if err != nil {
		p.handlePollFailure(ctx, err)
		return
	}

	snap := xrpl.NewSnapshot(resp)
	p.consecutiveErrors = 0
	now := p.now()

	// Reconcile cumulative upstream counters into deltas before anything
	// else so baselines advance even if a later step fails.
	discDelta := p.peerDisconnects.Delta(snap.PeerDisconnects)
	resourceDelta := p.resourceDisconnects.Delta(snap.PeerDisconnectsResources)
	jqDelta := p.jqOverflow.Delta(snap.JQTransOverflow)

	p.evaluateGaps(ctx, snap, now)

	if p.lastLedgerSeq > 0 {
		if gap := snap.LedgerSeq - p.lastLedgerSeq; gap > 1 {
			logger.Warn("Ledger gap: jumped %d ledgers (%d -> %d)", gap, p.lastLedgerSeq, snap.LedgerSeq)
		}
	}

	p.observeState(ctx, snap, now)
	timeInState := now.Sub(p.stateEnteredAt)

	// Peer details are a secondary fetch on a slower cadence; failure never
	// aborts the cycle.
	if p.exporter != nil && p.pollCount%p.cfg.PeerDetailEvery == 0 {
		peerCtx, cancelPeers := context.WithTimeout(ctx, p.cfg.RPCTimeout)
		peers, err := p.client.Peers(peerCtx)
		cancelPeers()
		if err != nil {
			logger.Warn("Could not get peer details: %v", err)
		} else {
			p.exporter.UpdatePeerDetails(xrpl.SummarizePeers(peers))
		}
	}

	p.pollCount++

	if p.exporter != nil {
		p.exportSnapshot(snap, timeInState, discDelta, resourceDelta, jqDelta)

		if p.pollCount%p.cfg.StatsEvery == 0 {
			p.refreshWindowStats(ctx)
		}
	}

	fmt.Printf("[%s] Poll #%4d | State: %-10s (%6.0fs) | Ledger: %9d (age: %ds) | Peers: %2d | Quorum: %2d | Proposers: %2d | IO: %dms | Validated: %4d\n",
		now.Format("2006-01-02 15:04:05"), p.pollCount, snap.State, timeInState.Seconds(),
		snap.LedgerSeq, snap.LedgerAge, snap.Peers, snap.ValidationQuorum, snap.Proposers,
		snap.IOLatencyMS, p.validationsChecked)

	sample := store.MetricsSample{
		Timestamp:   now,
		ServerState: snap.State.String(),
		LedgerSeq:   snap.LedgerSeq,
		Peers:       snap.Peers,
		LoadFactor:  snap.LoadFactor,
	}
	if err := p.store.WriteSample(ctx, sample); err != nil {
		logger.Error("Failed to write metrics sample: %v", err)
	}

	p.lastState = snap.State
	p.lastLedgerSeq = snap.LedgerSeq
}

// evaluateGaps back-checks every positive, not-yet-seen sequence strictly
// between the previous and current validated ledger. The validation outcome
// is approximated from the state known going into this poll, not a true
// historical lookup.
func (p *Poller) evaluateGaps(ctx context.Context, snap *xrpl.Snapshot, now time.Time) {
	if p.lastLedgerSeq == 0 {
		return
	}

	stateAtGap := p.lastState
	if stateAtGap == "" {
		stateAtGap = snap.State
	}
	wasProposing := stateAtGap == xrpl.StateProposing

	for _, seq := range p.gaps.pending(p.lastLedgerSeq, snap.LedgerSeq) {
		record := store.ValidationRecord{
			Timestamp:      now,
			LedgerSeq:      seq,
			ServerState:    stateAtGap.String(),
			WasProposing:   wasProposing,
			ShouldValidate: wasProposing,
			DidValidate:    wasProposing,
			Agreed:         wasProposing,
			Peers:          snap.Peers,
			LoadFactor:     snap.LoadFactor,
		}
		if err := p.store.UpsertValidation(ctx, record); err != nil {
			// Queued for retry on a later cycle.
			p.gaps.markFailed(seq)
			logger.Error("Failed to record validation for ledger %d: %v", seq, err)
			continue
		}

		p.gaps.markSeen(seq)
		p.validationsChecked++
		if p.exporter != nil {
			p.exporter.IncValidationsChecked()
		}
	}
}

// observeState compares the reported state with the tracked session. The
// first observation establishes the baseline silently; a change emits one
// transition record and one alert.
func (p *Poller) observeState(ctx context.Context, snap *xrpl.Snapshot, now time.Time) {
	if p.lastState == "" {
		p.stateEnteredAt = now
		return
	}
	if snap.State == p.lastState {
		return
	}

	duration := now.Sub(p.stateEnteredAt)

	transition := store.StateTransition{
		Timestamp:          now,
		OldState:           p.lastState.String(),
		NewState:           snap.State.String(),
		DurationInOldState: duration,
		LedgerSeq:          snap.LedgerSeq,
		Peers:              snap.Peers,
		LoadFactor:         snap.LoadFactor,
	}
	if err := p.store.WriteTransition(ctx, transition); err != nil {
		logger.Error("Failed to write state transition: %v", err)
	}
	p.stateChanges++

	alert.StateChange(p.notifier, p.lastState, snap.State, duration, snap.LedgerSeq)
	p.alertsSent++

	if p.exporter != nil {
		p.exporter.IncStateChanges()
		p.exporter.IncAlertsSent()
	}

	p.stateEnteredAt = now
}

// handlePollFailure escalates consecutive failures: warnings up to the
// threshold, then a single synthetic transition into unreachable with a
// critical alert. Recovery happens through the normal transition path on the
// next successful poll.
func (p *Poller) handlePollFailure(ctx context.Context, err error) {
	p.consecutiveErrors++
	p.apiErrors++
	if p.exporter != nil {
		p.exporter.IncAPIErrors()
	}

	now := p.now()

	switch {
	case p.consecutiveErrors == 1:
		logger.Warn("Validator unreachable (attempt %d): %v", p.consecutiveErrors, err)
	case p.consecutiveErrors <= p.cfg.FailureThreshold:
		logger.Warn("Still unreachable (attempt %d): %v", p.consecutiveErrors, err)
	default:
		if p.lastState != "" && p.lastState != xrpl.StateUnreachable {
			var duration time.Duration
			if !p.stateEnteredAt.IsZero() {
				duration = now.Sub(p.stateEnteredAt)
			}

			transition := store.StateTransition{
				Timestamp:          now,
				OldState:           p.lastState.String(),
				NewState:           xrpl.StateUnreachable.String(),
				DurationInOldState: duration,
				LedgerSeq:          p.lastLedgerSeq,
			}
			if err := p.store.WriteTransition(ctx, transition); err != nil {
				logger.Error("Failed to write unreachable transition: %v", err)
			}
			p.stateChanges++

			p.notifier.Notify(alert.SeverityCritical, "Validator Unreachable",
				fmt.Sprintf("Unable to connect to validator after %d attempts.\nPrevious state: %s\nLikely cause: validator down, restarting, or network issue",
					p.consecutiveErrors, p.lastState))
			p.alertsSent++

			if p.exporter != nil {
				p.exporter.IncStateChanges()
				p.exporter.IncAlertsSent()
				p.exporter.UpdateState(xrpl.StateUnreachable, 0)
			}

			p.stateEnteredAt = now
		}

		if p.lastState == "" {
			// Cold start straight into unreachable: no transition to record,
			// but the session needs a real entry time so a later recovery
			// reports a meaningful duration.
			p.stateEnteredAt = now
		}

		logger.Error("Validator unreachable (attempt %d)", p.consecutiveErrors)
		p.lastState = xrpl.StateUnreachable
	}
}

func (p *Poller) exportSnapshot(snap *xrpl.Snapshot, timeInState time.Duration, discDelta, resourceDelta, jqDelta uint64) {
	e := p.exporter

	e.UpdateState(snap.State, timeInState)
	e.UpdateLedger(snap.LedgerSeq)
	e.UpdateLedgerDetails(snap.LedgerAge, snap.BaseFeeXRP, snap.ReserveBaseXRP, snap.ReserveIncXRP)
	e.UpdatePeers(snap.Peers)
	e.AddPeerDisconnects(discDelta, resourceDelta)
	e.UpdateLoadFactor(snap.LoadFactor)
	e.UpdatePerformance(snap.IOLatencyMS, snap.ConvergeTimeS)
	e.AddJQTransOverflow(jqDelta)
	e.UpdateValidationQuorum(snap.ValidationQuorum)
	e.UpdateProposers(snap.Proposers)
	e.UpdateStateAccounting(snap.StateAccounting)
	e.UpdateSystem(snap.UptimeSeconds, snap.InitialSyncSeconds, snap.ServerStateDurationSeconds)
	e.UpdateMonitorUptime()

	if !p.infoPublished {
		e.UpdateServerInfo(snap.BuildVersion, snap.NodeSize, snap.PubkeyValidator, snap.CompleteLedgers)
		p.infoPublished = true
	}
}

func (p *Poller) refreshWindowStats(ctx context.Context) {
	for _, hours := range p.cfg.StatsWindows {
		stats, err := p.store.ValidationStats(ctx, hours)
		if err != nil {
			logger.Warn("Could not refresh %dh validation stats: %v", hours, err)
			continue
		}
		p.exporter.UpdateWindowStats(stats)
	}
}
