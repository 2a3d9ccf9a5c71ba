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

package store

import (
	"context"
	"time"
)

// MetricsSample is one poll's basic facts, appended every cycle.
type MetricsSample struct {
	Timestamp   time.Time
	ServerState string
	LedgerSeq   int64
	Peers       int
	LoadFactor  float64
}

// StateTransition records one observed change of operational state,
// including the synthetic transition into unreachable.
type StateTransition struct {
	Timestamp          time.Time
	OldState           string
	NewState           string
	DurationInOldState time.Duration
	LedgerSeq          int64
	Peers              int
	LoadFactor         float64
}

// ValidationRecord is the durable per-ledger audit entry. At most one record
// exists per ledger sequence; a later write replaces the earlier one.
type ValidationRecord struct {
	Timestamp      time.Time
	LedgerSeq      int64
	ServerState    string
	WasProposing   bool
	ShouldValidate bool
	DidValidate    bool
	Agreed         bool
	Peers          int
	LoadFactor     float64
}

// WindowStats summarizes validation records over a trailing window.
type WindowStats struct {
	WindowHours      int
	TotalChecked     int64
	AgreedCount      int64
	MissedCount      int64
	AgreementRatePct float64
}

// Store is the durable storage consumed by the poller. All writes are
// append or upsert; nothing in the core deletes.
type Store interface {
	WriteSample(ctx context.Context, sample MetricsSample) error
	WriteTransition(ctx context.Context, transition StateTransition) error
	UpsertValidation(ctx context.Context, record ValidationRecord) error
	ValidationStats(ctx context.Context, windowHours int) (*WindowStats, error)
	RecentSamples(ctx context.Context, limit int) ([]MetricsSample, error)
	RecentTransitions(ctx context.Context, limit int) ([]StateTransition, error)
	Close()
}
