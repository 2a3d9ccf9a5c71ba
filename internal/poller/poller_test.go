package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchxrpl/watchxrpl/internal/alert"
	"github.com/watchxrpl/watchxrpl/internal/store"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

// pollScript is one scripted poll outcome for the fake client.
type pollScript struct {
	state string
	seq   int64
	err   error
}

type scriptedClient struct {
	script []pollScript
	calls  int
}

func (c *scriptedClient) ServerInfo(_ context.Context) (*xrpl.ServerInfoResponse, error) {
	step := c.script[c.calls]
	if c.calls < len(c.script)-1 {
		c.calls++
	}
	if step.err != nil {
		return nil, step.err
	}

	resp := &xrpl.ServerInfoResponse{}
	resp.Info.ServerState = step.state
	resp.Info.ValidatedLedger.Seq = step.seq
	resp.Info.Peers = 20
	resp.Info.LoadFactor = 1
	return resp, nil
}

func (c *scriptedClient) Peers(_ context.Context) ([]xrpl.Peer, error) {
	return nil, errors.New("not scripted")
}

func (c *scriptedClient) Fee(_ context.Context) (*xrpl.FeeResponse, error) {
	return nil, errors.New("not scripted")
}

type recordedAlert struct {
	severity alert.Severity
	title    string
}

type recordingNotifier struct {
	alerts []recordedAlert
}

func (n *recordingNotifier) Notify(severity alert.Severity, title, _ string) {
	n.alerts = append(n.alerts, recordedAlert{severity: severity, title: title})
}

func newTestPoller(t *testing.T, script []pollScript, cfg Config) (*Poller, *store.MemoryStore, *recordingNotifier) {
	t.Helper()
	st := store.NewMemoryStore()
	notifier := &recordingNotifier{}
	p := New(&scriptedClient{script: script}, st, notifier, nil, cfg)

	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time {
		clock = clock.Add(3 * time.Second)
		return clock
	}
	return p, st, notifier
}

func TestStateTransitions(t *testing.T) {
	script := []pollScript{
		{state: "syncing", seq: 100},
		{state: "syncing", seq: 101},
		{state: "full", seq: 102},
		{state: "proposing", seq: 103},
	}
	p, st, notifier := newTestPoller(t, script, Config{})

	ctx := context.Background()
	for range script {
		p.PollOnce(ctx)
	}

	transitions, err := st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 2, "first observation is a silent baseline")

	// Most recent first.
	assert.Equal(t, "full", transitions[0].OldState)
	assert.Equal(t, "proposing", transitions[0].NewState)
	assert.Equal(t, "syncing", transitions[1].OldState)
	assert.Equal(t, "full", transitions[1].NewState)
	assert.Equal(t, 6*time.Second, transitions[1].DurationInOldState)

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, alert.SeverityWarning, notifier.alerts[0].severity)
	assert.Equal(t, "State Change: syncing -> full", notifier.alerts[0].title)
	assert.Equal(t, alert.SeverityInfo, notifier.alerts[1].severity)

	summary := p.Summary()
	assert.Equal(t, 4, summary.Polls)
	assert.Equal(t, 2, summary.StateChanges)
	assert.Equal(t, 2, summary.AlertsSent)
	assert.Equal(t, 0, summary.APIErrors)
}

func TestRepeatedStateIsNotATransition(t *testing.T) {
	script := []pollScript{
		{state: "proposing", seq: 100},
		{state: "proposing", seq: 101},
		{state: "proposing", seq: 102},
	}
	p, st, notifier := newTestPoller(t, script, Config{})

	ctx := context.Background()
	for range script {
		p.PollOnce(ctx)
	}

	transitions, err := st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, transitions)
	assert.Empty(t, notifier.alerts)
	assert.Equal(t, 0, p.Summary().StateChanges)
}

func TestGapBackfill(t *testing.T) {
	script := []pollScript{
		{state: "proposing", seq: 100},
		{state: "proposing", seq: 105},
	}
	p, st, _ := newTestPoller(t, script, Config{})

	ctx := context.Background()
	p.PollOnce(ctx)
	assert.Equal(t, 0, st.ValidationCount(), "no baseline on first poll")

	p.PollOnce(ctx)
	assert.Equal(t, 4, st.ValidationCount())

	for seq := int64(101); seq <= 104; seq++ {
		record, ok := st.Validation(seq)
		require.True(t, ok, "ledger %d", seq)
		assert.Equal(t, "proposing", record.ServerState)
		assert.True(t, record.Agreed)
		assert.True(t, record.DidValidate)
	}

	// Boundary sequences are not part of the gap.
	_, ok := st.Validation(100)
	assert.False(t, ok)
	_, ok = st.Validation(105)
	assert.False(t, ok)

	assert.Equal(t, 4, p.Summary().ValidationsChecked)
}

func TestGapBackfillUsesStateBeforeGap(t *testing.T) {
	script := []pollScript{
		{state: "syncing", seq: 100},
		{state: "proposing", seq: 103},
	}
	p, st, _ := newTestPoller(t, script, Config{})

	ctx := context.Background()
	p.PollOnce(ctx)
	p.PollOnce(ctx)

	record, ok := st.Validation(101)
	require.True(t, ok)
	assert.Equal(t, "syncing", record.ServerState)
	assert.False(t, record.WasProposing)
	assert.False(t, record.Agreed)
}

func TestGapBackfillExactlyOnce(t *testing.T) {
	script := []pollScript{
		{state: "proposing", seq: 100},
		{state: "proposing", seq: 105},
		{state: "proposing", seq: 103}, // rollback
		{state: "proposing", seq: 107},
	}
	p, st, _ := newTestPoller(t, script, Config{})

	ctx := context.Background()
	for range script {
		p.PollOnce(ctx)
	}

	// 101-104 from the first gap, then only the unseen 105 and 106 from the
	// post-rollback gap.
	assert.Equal(t, 6, st.ValidationCount())
	assert.Equal(t, 6, p.Summary().ValidationsChecked)
}

// failingUpsertStore fails UpsertValidation a set number of times.
type failingUpsertStore struct {
	*store.MemoryStore
	failures int
}

func (s *failingUpsertStore) UpsertValidation(ctx context.Context, record store.ValidationRecord) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("connection refused")
	}
	return s.MemoryStore.UpsertValidation(ctx, record)
}

func TestGapBackfillRetriesAfterStorageFailure(t *testing.T) {
	script := []pollScript{
		{state: "proposing", seq: 100},
		{state: "proposing", seq: 102},
		{state: "proposing", seq: 104},
	}
	st := &failingUpsertStore{MemoryStore: store.NewMemoryStore(), failures: 1}
	notifier := &recordingNotifier{}
	p := New(&scriptedClient{script: script}, st, notifier, nil, Config{})
	p.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	p.PollOnce(ctx)
	p.PollOnce(ctx)
	assert.Equal(t, 0, st.ValidationCount(), "failed upsert must not be marked seen")

	// Next cycle re-evaluates ledger 101 alongside the new gap member 103.
	p.PollOnce(ctx)
	assert.Equal(t, 2, st.ValidationCount())
	_, ok := st.Validation(101)
	assert.True(t, ok)
	_, ok = st.Validation(103)
	assert.True(t, ok)
	assert.Equal(t, 2, p.Summary().ValidationsChecked)
}

func TestUnreachableEscalation(t *testing.T) {
	pollErr := errors.New("connection refused")
	script := []pollScript{
		{state: "proposing", seq: 100},
		{err: pollErr},
		{err: pollErr},
		{err: pollErr},
		{err: pollErr},
	}
	p, st, notifier := newTestPoller(t, script, Config{FailureThreshold: 2})

	ctx := context.Background()
	p.PollOnce(ctx)

	// Failures one and two stay below the threshold.
	p.PollOnce(ctx)
	p.PollOnce(ctx)
	transitions, err := st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, transitions)
	assert.Empty(t, notifier.alerts)

	// The third consecutive failure crosses it.
	p.PollOnce(ctx)
	transitions, err = st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "proposing", transitions[0].OldState)
	assert.Equal(t, "unreachable", transitions[0].NewState)
	assert.Equal(t, int64(100), transitions[0].LedgerSeq)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, alert.SeverityCritical, notifier.alerts[0].severity)
	assert.Equal(t, "Validator Unreachable", notifier.alerts[0].title)

	// Further failures do not repeat the transition or the alert.
	p.PollOnce(ctx)
	transitions, err = st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, transitions, 1)
	assert.Len(t, notifier.alerts, 1)

	assert.Equal(t, 4, p.Summary().APIErrors)
}

func TestRecoveryFromUnreachable(t *testing.T) {
	pollErr := errors.New("connection refused")
	script := []pollScript{
		{state: "proposing", seq: 100},
		{err: pollErr},
		{err: pollErr},
		{err: pollErr},
		{state: "proposing", seq: 120},
	}
	p, st, notifier := newTestPoller(t, script, Config{FailureThreshold: 2})

	ctx := context.Background()
	for range script {
		p.PollOnce(ctx)
	}

	transitions, err := st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 2)
	assert.Equal(t, "unreachable", transitions[0].OldState)
	assert.Equal(t, "proposing", transitions[0].NewState)

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, alert.SeverityInfo, notifier.alerts[1].severity)
}

func TestColdStartRecovery(t *testing.T) {
	pollErr := errors.New("connection refused")
	script := []pollScript{
		{err: pollErr},
		{err: pollErr},
		{err: pollErr},
		{state: "proposing", seq: 100},
	}
	p, st, notifier := newTestPoller(t, script, Config{FailureThreshold: 2})

	ctx := context.Background()
	for range script {
		p.PollOnce(ctx)
	}

	// Starting unreachable leaves nothing to transition from, but the
	// recovery still records one transition with the time actually spent
	// unreachable, not a duration measured from the zero time.
	transitions, err := st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "unreachable", transitions[0].OldState)
	assert.Equal(t, "proposing", transitions[0].NewState)
	assert.Equal(t, 3*time.Second, transitions[0].DurationInOldState)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, alert.SeverityInfo, notifier.alerts[0].severity)
}

func TestFailuresWithoutBaseline(t *testing.T) {
	pollErr := errors.New("connection refused")
	script := []pollScript{
		{err: pollErr},
		{err: pollErr},
		{err: pollErr},
	}
	p, st, notifier := newTestPoller(t, script, Config{FailureThreshold: 2})

	ctx := context.Background()
	for range script {
		p.PollOnce(ctx)
	}

	// With no observed state there is nothing to transition from.
	transitions, err := st.RecentTransitions(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, transitions)
	assert.Empty(t, notifier.alerts)
	assert.Equal(t, 3, p.Summary().APIErrors)
}

func TestSamplesWrittenEveryPoll(t *testing.T) {
	script := []pollScript{
		{state: "full", seq: 100},
		{state: "full", seq: 101},
		{state: "full", seq: 102},
	}
	p, st, _ := newTestPoller(t, script, Config{})

	ctx := context.Background()
	for range script {
		p.PollOnce(ctx)
	}

	samples, err := st.RecentSamples(ctx, 10)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, int64(102), samples[0].LedgerSeq)
	assert.Equal(t, "full", samples[0].ServerState)
	assert.Equal(t, 20, samples[0].Peers)
}
