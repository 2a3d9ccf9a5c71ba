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

package xrpl

import (
	"sort"
	"strconv"
)

// State is the operational state of the monitored validator. All values except
// StateUnreachable are reported by rippled; unreachable is synthesized locally
// after repeated poll failures.
type State string

const (
	StateUnknown      State = "unknown"
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateSyncing      State = "syncing"
	StateTracking     State = "tracking"
	StateFull         State = "full"
	StateProposing    State = "proposing"
	StateUnreachable  State = "unreachable"
)

var stateRanks = map[State]int{
	StateUnknown:      0,
	StateDisconnected: 1,
	StateConnected:    2,
	StateSyncing:      3,
	StateTracking:     4,
	StateFull:         5,
	StateProposing:    6,
	StateUnreachable:  7,
}

// ParseState maps a reported server_state string onto the State enum.
// Anything unrecognized (including the empty string) is StateUnknown.
func ParseState(s string) State {
	state := State(s)
	if _, ok := stateRanks[state]; !ok {
		return StateUnknown
	}
	return state
}

// Rank returns the numeric value exported for this state (0..7).
func (s State) Rank() int {
	return stateRanks[s]
}

func (s State) String() string {
	return string(s)
}

// ServerInfoResponse is the wire form of the server_info command result.
// rippled reports several numeric counters as JSON strings; those are kept
// as strings here and parsed in NewSnapshot.
type ServerInfoResponse struct {
	Info struct {
		BuildVersion    string `json:"build_version"`
		CompleteLedgers string `json:"complete_ledgers"`
		NodeSize        string `json:"node_size"`
		PubkeyValidator string `json:"pubkey_validator"`
		ServerState     string `json:"server_state"`

		Peers            int     `json:"peers"`
		LoadFactor       float64 `json:"load_factor"`
		ValidationQuorum int     `json:"validation_quorum"`
		IOLatencyMS      int64   `json:"io_latency_ms"`
		Uptime           int64   `json:"uptime"`

		JQTransOverflow          string `json:"jq_trans_overflow"`
		PeerDisconnects          string `json:"peer_disconnects"`
		PeerDisconnectsResources string `json:"peer_disconnects_resources"`
		InitialSyncDurationUS    string `json:"initial_sync_duration_us"`
		ServerStateDurationUS    string `json:"server_state_duration_us"`

		LastClose struct {
			ConvergeTimeS float64 `json:"converge_time_s"`
			Proposers     int     `json:"proposers"`
		} `json:"last_close"`

		ValidatedLedger struct {
			Seq            int64   `json:"seq"`
			Age            int64   `json:"age"`
			BaseFeeXRP     float64 `json:"base_fee_xrp"`
			ReserveBaseXRP float64 `json:"reserve_base_xrp"`
			ReserveIncXRP  float64 `json:"reserve_inc_xrp"`
		} `json:"validated_ledger"`

		StateAccounting map[string]struct {
			DurationUS  string `json:"duration_us"`
			Transitions string `json:"transitions"`
		} `json:"state_accounting"`
	} `json:"info"`
}

// PeersResponse is the wire form of the peers command result.
type PeersResponse struct {
	Peers []Peer `json:"peers"`
}

type Peer struct {
	Address string `json:"address"`
	Inbound bool   `json:"inbound"`
	Sanity  string `json:"sanity"`
	Latency *int64 `json:"latency"`
	Version string `json:"version"`
}

// FeeResponse is the wire form of the fee command result.
type FeeResponse struct {
	CurrentLedgerSize  string `json:"current_ledger_size"`
	ExpectedLedgerSize string `json:"expected_ledger_size"`
	CurrentQueueSize   string `json:"current_queue_size"`
	Drops              struct {
		BaseFee       string `json:"base_fee"`
		MedianFee     string `json:"median_fee"`
		MinimumFee    string `json:"minimum_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
}

// StateAccounting is the cumulative time and transition count rippled reports
// per operational state.
type StateAccounting struct {
	DurationSeconds float64
	Transitions     uint64
}

// Snapshot is one poll's normalized view of the validator. It is owned by the
// poll cycle that produced it and not retained beyond deriving deltas.
type Snapshot struct {
	State            State
	LedgerSeq        int64
	LedgerAge        int64
	BaseFeeXRP       float64
	ReserveBaseXRP   float64
	ReserveIncXRP    float64
	Peers            int
	LoadFactor       float64
	ValidationQuorum int
	Proposers        int
	IOLatencyMS      int64
	ConvergeTimeS    float64

	// Cumulative upstream counters, reconciled into deltas by the poller.
	JQTransOverflow          uint64
	PeerDisconnects          uint64
	PeerDisconnectsResources uint64

	UptimeSeconds              int64
	InitialSyncSeconds         float64
	ServerStateDurationSeconds float64

	StateAccounting map[string]StateAccounting

	BuildVersion    string
	NodeSize        string
	PubkeyValidator string
	CompleteLedgers string
}

// NewSnapshot normalizes a server_info result into a Snapshot. Missing numeric
// fields come through as zero and a missing server_state becomes unknown.
func NewSnapshot(resp *ServerInfoResponse) *Snapshot {
	info := resp.Info

	snap := &Snapshot{
		State:            ParseState(info.ServerState),
		LedgerSeq:        info.ValidatedLedger.Seq,
		LedgerAge:        info.ValidatedLedger.Age,
		BaseFeeXRP:       info.ValidatedLedger.BaseFeeXRP,
		ReserveBaseXRP:   info.ValidatedLedger.ReserveBaseXRP,
		ReserveIncXRP:    info.ValidatedLedger.ReserveIncXRP,
		Peers:            info.Peers,
		LoadFactor:       info.LoadFactor,
		ValidationQuorum: info.ValidationQuorum,
		Proposers:        info.LastClose.Proposers,
		IOLatencyMS:      info.IOLatencyMS,
		ConvergeTimeS:    info.LastClose.ConvergeTimeS,
		UptimeSeconds:    info.Uptime,
		BuildVersion:     info.BuildVersion,
		NodeSize:         info.NodeSize,
		PubkeyValidator:  info.PubkeyValidator,
		CompleteLedgers:  info.CompleteLedgers,
	}

	snap.JQTransOverflow, _ = strconv.ParseUint(info.JQTransOverflow, 10, 64)
	snap.PeerDisconnects, _ = strconv.ParseUint(info.PeerDisconnects, 10, 64)
	snap.PeerDisconnectsResources, _ = strconv.ParseUint(info.PeerDisconnectsResources, 10, 64)

	initialSyncUS, _ := strconv.ParseInt(info.InitialSyncDurationUS, 10, 64)
	snap.InitialSyncSeconds = float64(initialSyncUS) / 1e6
	stateDurationUS, _ := strconv.ParseInt(info.ServerStateDurationUS, 10, 64)
	snap.ServerStateDurationSeconds = float64(stateDurationUS) / 1e6

	if len(info.StateAccounting) > 0 {
		snap.StateAccounting = make(map[string]StateAccounting, len(info.StateAccounting))
		for name, entry := range info.StateAccounting {
			durationUS, _ := strconv.ParseInt(entry.DurationUS, 10, 64)
			transitions, _ := strconv.ParseUint(entry.Transitions, 10, 64)
			snap.StateAccounting[name] = StateAccounting{
				DurationSeconds: float64(durationUS) / 1e6,
				Transitions:     transitions,
			}
		}
	}

	return snap
}

// PeerSummary aggregates the peers command output into the handful of values
// worth exporting.
type PeerSummary struct {
	Inbound      int
	Outbound     int
	Insane       int
	P90LatencyMS int64
}

// SummarizePeers counts inbound/outbound/insane peers and computes the 90th
// percentile latency across peers that report one.
func SummarizePeers(peers []Peer) PeerSummary {
	var summary PeerSummary
	var latencies []int64

	for _, peer := range peers {
		if peer.Inbound {
			summary.Inbound++
		} else {
			summary.Outbound++
		}
		if peer.Sanity == "insane" {
			summary.Insane++
		}
		if peer.Latency != nil {
			latencies = append(latencies, *peer.Latency)
		}
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		idx := int(float64(len(latencies)) * 0.90)
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		summary.P90LatencyMS = latencies[idx]
	}

	return summary
}
