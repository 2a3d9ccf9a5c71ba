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

package testutil

import (
	"time"
)

// rippled JSON-RPC response fixtures
var (
	ValidServerInfoResponse = `{
		"result": {
			"info": {
				"build_version": "2.2.0",
				"complete_ledgers": "32570-91000000",
				"node_size": "huge",
				"pubkey_validator": "nHUkAWDR4cB8AgPg7VXMX6et8xRTQb2KJfgv1aBEXozwrawRKgMB",
				"server_state": "proposing",
				"peers": 21,
				"load_factor": 1,
				"validation_quorum": 28,
				"io_latency_ms": 1,
				"uptime": 86400,
				"jq_trans_overflow": "0",
				"peer_disconnects": "150",
				"peer_disconnects_resources": "3",
				"initial_sync_duration_us": "240000000",
				"server_state_duration_us": "3600000000",
				"last_close": {
					"converge_time_s": 2.5,
					"proposers": 35
				},
				"validated_ledger": {
					"seq": 91000000,
					"age": 2,
					"base_fee_xrp": 0.00001,
					"reserve_base_xrp": 10,
					"reserve_inc_xrp": 2
				},
				"state_accounting": {
					"proposing": {
						"duration_us": "3600000000",
						"transitions": "1"
					},
					"syncing": {
						"duration_us": "240000000",
						"transitions": "2"
					}
				}
			},
			"status": "success"
		}
	}`

	MinimalServerInfoResponse = `{
		"result": {
			"info": {
				"server_state": "connected"
			},
			"status": "success"
		}
	}`

	ValidPeersResponse = `{
		"result": {
			"peers": [
				{
					"address": "10.0.0.1:51235",
					"inbound": true,
					"sanity": "sane",
					"latency": 45,
					"version": "rippled-2.2.0"
				},
				{
					"address": "10.0.0.2:51235",
					"inbound": false,
					"sanity": "sane",
					"latency": 12,
					"version": "rippled-2.2.0"
				},
				{
					"address": "10.0.0.3:51235",
					"inbound": false,
					"sanity": "insane",
					"version": "rippled-2.1.1"
				}
			],
			"status": "success"
		}
	}`

	ValidFeeResponse = `{
		"result": {
			"current_ledger_size": "28",
			"expected_ledger_size": "58",
			"current_queue_size": "0",
			"drops": {
				"base_fee": "10",
				"median_fee": "5000",
				"minimum_fee": "10",
				"open_ledger_fee": "10"
			},
			"status": "success"
		}
	}`

	UpstreamErrorResponse = `{
		"result": {
			"error": "noPermission",
			"error_message": "You don't have permission for this command.",
			"status": "error"
		}
	}`
)

// Time utilities
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}
