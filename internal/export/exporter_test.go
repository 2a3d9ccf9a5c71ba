package export

import (
	"net/http"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchxrpl/watchxrpl/internal/store"
	"github.com/watchxrpl/watchxrpl/internal/testutil"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

// scrape serves the exporter's handler and parses the exposition text back
// into metric families.
func scrape(t *testing.T, e *Exporter) map[string]*dto.MetricFamily {
	t.Helper()

	server := testutil.HTTPTestServer(t, e.Handler().ServeHTTP)
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	require.NoError(t, err)
	return families
}

func gaugeValue(t *testing.T, families map[string]*dto.MetricFamily, name string) float64 {
	t.Helper()
	family, ok := families[name]
	require.True(t, ok, "metric %s not exported", name)
	require.NotEmpty(t, family.Metric)
	return family.Metric[0].GetGauge().GetValue()
}

func labeledValue(t *testing.T, families map[string]*dto.MetricFamily, name, label, value string) float64 {
	t.Helper()
	family, ok := families[name]
	require.True(t, ok, "metric %s not exported", name)
	for _, metric := range family.Metric {
		for _, pair := range metric.Label {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s has no series with %s=%q", name, label, value)
	return 0
}

func TestStateMetrics(t *testing.T) {
	e := New()
	e.UpdateState(xrpl.StateProposing, 90*time.Second)

	families := scrape(t, e)

	assert.Equal(t, float64(6), gaugeValue(t, families, "xrpl_validator_state_value"))
	assert.Equal(t, float64(90), gaugeValue(t, families, "xrpl_time_in_current_state_seconds"))
	assert.Equal(t, float64(1), labeledValue(t, families, "xrpl_validator_state_info", "state", "proposing"))
}

func TestStateInfoResetsOnChange(t *testing.T) {
	e := New()
	e.UpdateState(xrpl.StateProposing, time.Second)
	e.UpdateState(xrpl.StateSyncing, time.Second)

	families := scrape(t, e)

	family := families["xrpl_validator_state_info"]
	require.NotNil(t, family)
	require.Len(t, family.Metric, 1, "only the current state may be present")
	assert.Equal(t, float64(1), labeledValue(t, families, "xrpl_validator_state_info", "state", "syncing"))
	assert.Equal(t, float64(3), gaugeValue(t, families, "xrpl_validator_state_value"))
}

func TestLedgerAndPeerMetrics(t *testing.T) {
	e := New()
	e.UpdateLedger(91000000)
	e.UpdateLedgerDetails(2, 0.00001, 10, 2)
	e.UpdatePeers(21)
	e.UpdatePeerDetails(xrpl.PeerSummary{Inbound: 8, Outbound: 13, Insane: 1, P90LatencyMS: 45})

	families := scrape(t, e)

	assert.Equal(t, float64(91000000), gaugeValue(t, families, "xrpl_ledger_sequence"))
	assert.Equal(t, float64(2), gaugeValue(t, families, "xrpl_ledger_age_seconds"))
	assert.Equal(t, float64(21), gaugeValue(t, families, "xrpl_peer_count"))
	assert.Equal(t, float64(8), gaugeValue(t, families, "xrpl_peers_inbound"))
	assert.Equal(t, float64(13), gaugeValue(t, families, "xrpl_peers_outbound"))
	assert.Equal(t, float64(1), gaugeValue(t, families, "xrpl_peers_insane"))
	assert.Equal(t, float64(45), gaugeValue(t, families, "xrpl_peer_latency_p90_ms"))
}

func TestCounterDeltasAccumulate(t *testing.T) {
	e := New()
	e.AddPeerDisconnects(5, 1)
	e.AddPeerDisconnects(3, 0)
	e.AddJQTransOverflow(2)

	families := scrape(t, e)

	disconnects := families["xrpl_peer_disconnects_total"]
	require.NotNil(t, disconnects)
	assert.Equal(t, float64(8), disconnects.Metric[0].GetCounter().GetValue())

	resources := families["xrpl_peer_disconnects_resources_total"]
	require.NotNil(t, resources)
	assert.Equal(t, float64(1), resources.Metric[0].GetCounter().GetValue())

	overflow := families["xrpl_jq_trans_overflow_total"]
	require.NotNil(t, overflow)
	assert.Equal(t, float64(2), overflow.Metric[0].GetCounter().GetValue())
}

func TestWindowStats(t *testing.T) {
	e := New()
	e.UpdateWindowStats(&store.WindowStats{
		WindowHours: 1, TotalChecked: 100, AgreedCount: 98, MissedCount: 2, AgreementRatePct: 98,
	})
	e.UpdateWindowStats(&store.WindowStats{
		WindowHours: 24, TotalChecked: 2000, AgreedCount: 2000, AgreementRatePct: 100,
	})

	families := scrape(t, e)

	assert.Equal(t, float64(98), labeledValue(t, families, "xrpl_validation_agreements", "window", "1h"))
	assert.Equal(t, float64(2), labeledValue(t, families, "xrpl_validation_missed", "window", "1h"))
	assert.Equal(t, float64(98), labeledValue(t, families, "xrpl_validation_agreement_pct", "window", "1h"))
	assert.Equal(t, float64(100), labeledValue(t, families, "xrpl_validation_agreement_pct", "window", "24h"))
}

func TestStateAccounting(t *testing.T) {
	e := New()
	e.UpdateStateAccounting(map[string]xrpl.StateAccounting{
		"proposing": {DurationSeconds: 3600, Transitions: 1},
		"syncing":   {DurationSeconds: 240, Transitions: 2},
	})

	families := scrape(t, e)

	assert.Equal(t, float64(3600), labeledValue(t, families, "xrpl_state_accounting_duration_seconds", "state", "proposing"))
	assert.Equal(t, float64(2), labeledValue(t, families, "xrpl_state_accounting_transitions", "state", "syncing"))
}

func TestServerInfoLabels(t *testing.T) {
	e := New()
	e.UpdateServerInfo("2.2.0", "huge", "nHUkAWDR4cB8AgPg7VXMX6et8xRTQb2KJfgv1aBEXozwrawRKgMB", "32570-91000000")

	families := scrape(t, e)

	family := families["xrpl_server_info"]
	require.NotNil(t, family)
	require.Len(t, family.Metric, 1)

	labels := map[string]string{}
	for _, pair := range family.Metric[0].Label {
		labels[pair.GetName()] = pair.GetValue()
	}
	assert.Equal(t, "2.2.0", labels["build_version"])
	assert.Equal(t, "huge", labels["node_size"])
	assert.Equal(t, "32570-91000000", labels["complete_ledgers"])
}

func TestRunCounters(t *testing.T) {
	e := New()
	e.IncStateChanges()
	e.IncAlertsSent()
	e.IncAPIErrors()
	e.IncAPIErrors()
	e.IncValidationsChecked()

	families := scrape(t, e)

	assert.Equal(t, float64(1), families["xrpl_state_changes_total"].Metric[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), families["xrpl_alerts_sent_total"].Metric[0].GetCounter().GetValue())
	assert.Equal(t, float64(2), families["xrpl_api_errors_total"].Metric[0].GetCounter().GetValue())
	assert.Equal(t, float64(1), families["xrpl_validations_checked_total"].Metric[0].GetCounter().GetValue())
}
