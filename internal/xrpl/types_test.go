package xrpl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchxrpl/watchxrpl/internal/testutil"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected State
	}{
		{name: "proposing", input: "proposing", expected: StateProposing},
		{name: "full", input: "full", expected: StateFull},
		{name: "tracking", input: "tracking", expected: StateTracking},
		{name: "syncing", input: "syncing", expected: StateSyncing},
		{name: "connected", input: "connected", expected: StateConnected},
		{name: "disconnected", input: "disconnected", expected: StateDisconnected},
		{name: "empty string", input: "", expected: StateUnknown},
		{name: "unrecognized", input: "warming_up", expected: StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseState(tt.input))
		})
	}
}

func TestStateRank(t *testing.T) {
	assert.Equal(t, 0, StateUnknown.Rank())
	assert.Equal(t, 1, StateDisconnected.Rank())
	assert.Equal(t, 6, StateProposing.Rank())
	assert.Equal(t, 7, StateUnreachable.Rank())
}

func TestNewSnapshot(t *testing.T) {
	var envelope struct {
		Result ServerInfoResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(testutil.ValidServerInfoResponse), &envelope))

	snap := NewSnapshot(&envelope.Result)

	assert.Equal(t, StateProposing, snap.State)
	assert.Equal(t, int64(91000000), snap.LedgerSeq)
	assert.Equal(t, int64(2), snap.LedgerAge)
	assert.Equal(t, 21, snap.Peers)
	assert.Equal(t, 28, snap.ValidationQuorum)
	assert.Equal(t, 35, snap.Proposers)
	assert.Equal(t, 2.5, snap.ConvergeTimeS)

	// String-typed counters must parse into numbers.
	assert.Equal(t, uint64(150), snap.PeerDisconnects)
	assert.Equal(t, uint64(3), snap.PeerDisconnectsResources)
	assert.Equal(t, uint64(0), snap.JQTransOverflow)
	assert.Equal(t, 240.0, snap.InitialSyncSeconds)
	assert.Equal(t, 3600.0, snap.ServerStateDurationSeconds)

	require.Contains(t, snap.StateAccounting, "proposing")
	assert.Equal(t, 3600.0, snap.StateAccounting["proposing"].DurationSeconds)
	assert.Equal(t, uint64(2), snap.StateAccounting["syncing"].Transitions)

	assert.Equal(t, "nHUkAWDR4cB8AgPg7VXMX6et8xRTQb2KJfgv1aBEXozwrawRKgMB", snap.PubkeyValidator)
}

func TestNewSnapshotMinimal(t *testing.T) {
	var envelope struct {
		Result ServerInfoResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(testutil.MinimalServerInfoResponse), &envelope))

	snap := NewSnapshot(&envelope.Result)

	assert.Equal(t, StateConnected, snap.State)
	assert.Equal(t, int64(0), snap.LedgerSeq)
	assert.Equal(t, uint64(0), snap.PeerDisconnects)
	assert.Nil(t, snap.StateAccounting)
}

func TestSummarizePeers(t *testing.T) {
	latency := func(ms int64) *int64 { return &ms }

	tests := []struct {
		name     string
		peers    []Peer
		expected PeerSummary
	}{
		{
			name:     "no peers",
			peers:    nil,
			expected: PeerSummary{},
		},
		{
			name: "mixed directions and sanity",
			peers: []Peer{
				{Inbound: true, Sanity: "sane", Latency: latency(40)},
				{Inbound: false, Sanity: "sane", Latency: latency(10)},
				{Inbound: false, Sanity: "insane"},
			},
			expected: PeerSummary{Inbound: 1, Outbound: 2, Insane: 1, P90LatencyMS: 40},
		},
		{
			name: "p90 picks high tail",
			peers: []Peer{
				{Latency: latency(10)},
				{Latency: latency(20)},
				{Latency: latency(30)},
				{Latency: latency(40)},
				{Latency: latency(50)},
				{Latency: latency(60)},
				{Latency: latency(70)},
				{Latency: latency(80)},
				{Latency: latency(90)},
				{Latency: latency(500)},
			},
			expected: PeerSummary{Outbound: 10, P90LatencyMS: 500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SummarizePeers(tt.peers))
		})
	}
}
