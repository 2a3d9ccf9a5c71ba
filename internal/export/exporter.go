package export

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchxrpl/watchxrpl/internal/store"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

// Exporter projects the tracked validator facts onto Prometheus metrics.
// It owns its own registry and value space; the core never exposes internal
// state through it, only pushed values and reconciled counter deltas.
type Exporter struct {
	registry  *prometheus.Registry
	startTime time.Time

	validatorState     prometheus.Gauge
	validatorStateInfo *prometheus.GaugeVec
	timeInState        prometheus.Gauge
	serverStateSeconds prometheus.Gauge

	ledgerSequence prometheus.Gauge
	ledgerAge      prometheus.Gauge
	baseFee        prometheus.Gauge
	reserveBase    prometheus.Gauge
	reserveInc     prometheus.Gauge

	peerCount                prometheus.Gauge
	peersInbound             prometheus.Gauge
	peersOutbound            prometheus.Gauge
	peersInsane              prometheus.Gauge
	peerLatencyP90           prometheus.Gauge
	peerDisconnects          prometheus.Counter
	peerDisconnectsResources prometheus.Counter

	loadFactor      prometheus.Gauge
	ioLatency       prometheus.Gauge
	convergeTime    prometheus.Gauge
	jqTransOverflow prometheus.Counter

	validationQuorum   prometheus.Gauge
	proposers          prometheus.Gauge
	validationsChecked prometheus.Counter
	windowAgreements   *prometheus.GaugeVec
	windowMissed       *prometheus.GaugeVec
	windowAgreementPct *prometheus.GaugeVec

	stateDuration    *prometheus.GaugeVec
	stateTransitions *prometheus.GaugeVec

	uptime       prometheus.Gauge
	initialSync  prometheus.Gauge
	monitorUp    prometheus.Gauge
	stateChanges prometheus.Counter
	alertsSent   prometheus.Counter
	apiErrors    prometheus.Counter

	serverInfo *prometheus.GaugeVec
}

func New() *Exporter {
	e := &Exporter{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),

		validatorState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_validator_state_value", Help: "Validator state as numeric value"}),
		validatorStateInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpl_validator_state_info", Help: "Current validator state"}, []string{"state"}),
		timeInState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_time_in_current_state_seconds", Help: "Time spent in current state (seconds)"}),
		serverStateSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_server_state_duration_seconds", Help: "Time in current state from server"}),

		ledgerSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_ledger_sequence", Help: "Current validated ledger sequence"}),
		ledgerAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_ledger_age_seconds", Help: "Age of last validated ledger"}),
		baseFee: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_base_fee_xrp", Help: "Network base transaction fee (XRP)"}),
		reserveBase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_reserve_base_xrp", Help: "Base account reserve (XRP)"}),
		reserveInc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_reserve_inc_xrp", Help: "Owner reserve increment (XRP)"}),

		peerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_peer_count", Help: "Number of connected peers"}),
		peersInbound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_peers_inbound", Help: "Number of inbound peers"}),
		peersOutbound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_peers_outbound", Help: "Number of outbound peers"}),
		peersInsane: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_peers_insane", Help: "Number of peers on wrong ledger"}),
		peerLatencyP90: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_peer_latency_p90_ms", Help: "90th percentile peer latency (ms)"}),
		peerDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrpl_peer_disconnects_total", Help: "Total peer disconnections"}),
		peerDisconnectsResources: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrpl_peer_disconnects_resources_total", Help: "Disconnections due to resources"}),

		loadFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_load_factor", Help: "Server load factor"}),
		ioLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_io_latency_ms", Help: "Disk I/O latency (ms)"}),
		convergeTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_consensus_converge_time_seconds", Help: "Time to reach consensus (seconds)"}),
		jqTransOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrpl_jq_trans_overflow_total", Help: "Transaction queue overflows"}),

		validationQuorum: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_validation_quorum", Help: "Validators needed for consensus"}),
		proposers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_proposers", Help: "Proposers in last consensus round"}),
		validationsChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrpl_validations_checked_total", Help: "Total validations checked"}),
		windowAgreements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpl_validation_agreements", Help: "Validations agreed in window"}, []string{"window"}),
		windowMissed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpl_validation_missed", Help: "Validations missed in window"}, []string{"window"}),
		windowAgreementPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpl_validation_agreement_pct", Help: "Agreement percentage in window"}, []string{"window"}),

		stateDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpl_state_accounting_duration_seconds", Help: "Time in each state"}, []string{"state"}),
		stateTransitions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpl_state_accounting_transitions", Help: "Transitions to each state"}, []string{"state"}),

		uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_validator_uptime_seconds", Help: "Validator uptime (seconds)"}),
		initialSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_initial_sync_duration_seconds", Help: "Initial sync duration (seconds)"}),
		monitorUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xrpl_monitor_uptime_seconds", Help: "Monitor uptime (seconds)"}),
		stateChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrpl_state_changes_total", Help: "Total state changes"}),
		alertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrpl_alerts_sent_total", Help: "Total alerts sent"}),
		apiErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xrpl_api_errors_total", Help: "Total API errors"}),

		serverInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xrpl_server_info", Help: "Server information"},
			[]string{"build_version", "node_size", "pubkey_validator", "complete_ledgers"}),
	}

	e.registry.MustRegister(
		e.validatorState, e.validatorStateInfo, e.timeInState, e.serverStateSeconds,
		e.ledgerSequence, e.ledgerAge, e.baseFee, e.reserveBase, e.reserveInc,
		e.peerCount, e.peersInbound, e.peersOutbound, e.peersInsane, e.peerLatencyP90,
		e.peerDisconnects, e.peerDisconnectsResources,
		e.loadFactor, e.ioLatency, e.convergeTime, e.jqTransOverflow,
		e.validationQuorum, e.proposers, e.validationsChecked,
		e.windowAgreements, e.windowMissed, e.windowAgreementPct,
		e.stateDuration, e.stateTransitions,
		e.uptime, e.initialSync, e.monitorUp,
		e.stateChanges, e.alertsSent, e.apiErrors,
		e.serverInfo,
	)

	return e
}

// Handler returns the /metrics handler for this exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on the given address and blocks.
func (e *Exporter) Serve(listen string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	return http.ListenAndServe(listen, mux)
}

func (e *Exporter) UpdateState(state xrpl.State, timeInState time.Duration) {
	e.validatorState.Set(float64(state.Rank()))
	e.validatorStateInfo.Reset()
	e.validatorStateInfo.WithLabelValues(state.String()).Set(1)
	e.timeInState.Set(timeInState.Seconds())
}

func (e *Exporter) UpdateLedger(seq int64) {
	e.ledgerSequence.Set(float64(seq))
}

func (e *Exporter) UpdateLedgerDetails(age int64, baseFee, reserveBase, reserveInc float64) {
	e.ledgerAge.Set(float64(age))
	e.baseFee.Set(baseFee)
	e.reserveBase.Set(reserveBase)
	e.reserveInc.Set(reserveInc)
}

func (e *Exporter) UpdatePeers(count int) {
	e.peerCount.Set(float64(count))
}

func (e *Exporter) UpdatePeerDetails(summary xrpl.PeerSummary) {
	e.peersInbound.Set(float64(summary.Inbound))
	e.peersOutbound.Set(float64(summary.Outbound))
	e.peersInsane.Set(float64(summary.Insane))
	e.peerLatencyP90.Set(float64(summary.P90LatencyMS))
}

// AddPeerDisconnects applies already-reconciled counter deltas.
func (e *Exporter) AddPeerDisconnects(total, resources uint64) {
	e.peerDisconnects.Add(float64(total))
	e.peerDisconnectsResources.Add(float64(resources))
}

func (e *Exporter) UpdateLoadFactor(loadFactor float64) {
	e.loadFactor.Set(loadFactor)
}

func (e *Exporter) UpdatePerformance(ioLatencyMS int64, convergeTimeS float64) {
	e.ioLatency.Set(float64(ioLatencyMS))
	e.convergeTime.Set(convergeTimeS)
}

func (e *Exporter) AddJQTransOverflow(delta uint64) {
	e.jqTransOverflow.Add(float64(delta))
}

func (e *Exporter) UpdateValidationQuorum(quorum int) {
	e.validationQuorum.Set(float64(quorum))
}

func (e *Exporter) UpdateProposers(proposers int) {
	e.proposers.Set(float64(proposers))
}

func (e *Exporter) IncValidationsChecked() {
	e.validationsChecked.Inc()
}

func (e *Exporter) UpdateWindowStats(stats *store.WindowStats) {
	window := fmt.Sprintf("%dh", stats.WindowHours)
	e.windowAgreements.WithLabelValues(window).Set(float64(stats.AgreedCount))
	e.windowMissed.WithLabelValues(window).Set(float64(stats.MissedCount))
	e.windowAgreementPct.WithLabelValues(window).Set(stats.AgreementRatePct)
}

func (e *Exporter) UpdateStateAccounting(accounting map[string]xrpl.StateAccounting) {
	for state, entry := range accounting {
		e.stateDuration.WithLabelValues(state).Set(entry.DurationSeconds)
		e.stateTransitions.WithLabelValues(state).Set(float64(entry.Transitions))
	}
}

func (e *Exporter) UpdateSystem(uptimeSeconds int64, initialSyncSeconds, stateDurationSeconds float64) {
	e.uptime.Set(float64(uptimeSeconds))
	e.initialSync.Set(initialSyncSeconds)
	e.serverStateSeconds.Set(stateDurationSeconds)
}

func (e *Exporter) UpdateMonitorUptime() {
	e.monitorUp.Set(time.Since(e.startTime).Seconds())
}

func (e *Exporter) UpdateServerInfo(buildVersion, nodeSize, pubkeyValidator, completeLedgers string) {
	e.serverInfo.Reset()
	e.serverInfo.WithLabelValues(buildVersion, nodeSize, pubkeyValidator, completeLedgers).Set(1)
}

func (e *Exporter) IncStateChanges() {
	e.stateChanges.Inc()
}

func (e *Exporter) IncAlertsSent() {
	e.alertsSent.Inc()
}

func (e *Exporter) IncAPIErrors() {
	e.apiErrors.Inc()
}
