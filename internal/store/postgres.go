package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watchxrpl/watchxrpl/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS validator_metrics (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	server_state TEXT NOT NULL,
	ledger_seq BIGINT NOT NULL,
	peers INTEGER,
	load_factor DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_metrics_ts ON validator_metrics (ts);
CREATE INDEX IF NOT EXISTS idx_metrics_ledger_seq ON validator_metrics (ledger_seq);

CREATE TABLE IF NOT EXISTS state_transitions (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	old_state TEXT NOT NULL,
	new_state TEXT NOT NULL,
	duration_in_old_state DOUBLE PRECISION,
	ledger_seq BIGINT,
	peers INTEGER,
	load_factor DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_transitions_ts ON state_transitions (ts);
CREATE INDEX IF NOT EXISTS idx_transitions_states ON state_transitions (old_state, new_state);

CREATE TABLE IF NOT EXISTS ledger_validations (
	id BIGSERIAL PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	ledger_seq BIGINT NOT NULL UNIQUE,
	server_state TEXT NOT NULL,
	was_proposing BOOLEAN NOT NULL,
	should_validate BOOLEAN NOT NULL,
	did_validate BOOLEAN,
	agreed BOOLEAN,
	peers INTEGER,
	load_factor DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_validations_ts ON ledger_validations (ts);
CREATE INDEX IF NOT EXISTS idx_validations_should ON ledger_validations (should_validate, did_validate);
`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	config.MaxConns = 4
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger.Debug("Connected to postgres, schema ready")
	return &PostgresStore{pool: pool}, nil
}

// Close releases all database resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) WriteSample(ctx context.Context, sample MetricsSample) error {
	query := `
		INSERT INTO validator_metrics (ts, server_state, ledger_seq, peers, load_factor)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		sample.Timestamp, sample.ServerState, sample.LedgerSeq, sample.Peers, sample.LoadFactor,
	)
	if err != nil {
		return fmt.Errorf("inserting metrics sample: %w", err)
	}
	return nil
}

func (s *PostgresStore) WriteTransition(ctx context.Context, transition StateTransition) error {
	query := `
		INSERT INTO state_transitions
			(ts, old_state, new_state, duration_in_old_state, ledger_seq, peers, load_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		transition.Timestamp, transition.OldState, transition.NewState,
		transition.DurationInOldState.Seconds(),
		transition.LedgerSeq, transition.Peers, transition.LoadFactor,
	)
	if err != nil {
		return fmt.Errorf("inserting state transition: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertValidation(ctx context.Context, record ValidationRecord) error {
	query := `
		INSERT INTO ledger_validations
			(ts, ledger_seq, server_state, was_proposing, should_validate,
			 did_validate, agreed, peers, load_factor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ledger_seq) DO UPDATE SET
			ts = EXCLUDED.ts,
			server_state = EXCLUDED.server_state,
			was_proposing = EXCLUDED.was_proposing,
			should_validate = EXCLUDED.should_validate,
			did_validate = EXCLUDED.did_validate,
			agreed = EXCLUDED.agreed,
			peers = EXCLUDED.peers,
			load_factor = EXCLUDED.load_factor`

	_, err := s.pool.Exec(ctx, query,
		record.Timestamp, record.LedgerSeq, record.ServerState,
		record.WasProposing, record.ShouldValidate, record.DidValidate, record.Agreed,
		record.Peers, record.LoadFactor,
	)
	if err != nil {
		return fmt.Errorf("upserting validation record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ValidationStats(ctx context.Context, windowHours int) (*WindowStats, error) {
	cutoff := time.Now().Add(-time.Duration(windowHours) * time.Hour)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE did_validate AND agreed),
			COUNT(*) FILTER (WHERE should_validate AND NOT did_validate)
		FROM ledger_validations
		WHERE ts >= $1`

	stats := &WindowStats{WindowHours: windowHours}
	err := s.pool.QueryRow(ctx, query, cutoff).Scan(
		&stats.TotalChecked, &stats.AgreedCount, &stats.MissedCount,
	)
	if err != nil {
		return nil, fmt.Errorf("querying validation stats: %w", err)
	}

	if stats.TotalChecked > 0 {
		stats.AgreementRatePct = float64(stats.AgreedCount) / float64(stats.TotalChecked) * 100
	}
	return stats, nil
}

func (s *PostgresStore) RecentSamples(ctx context.Context, limit int) ([]MetricsSample, error) {
	query := `
		SELECT ts, server_state, ledger_seq, peers, load_factor
		FROM validator_metrics
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent samples: %w", err)
	}
	defer rows.Close()

	var samples []MetricsSample
	for rows.Next() {
		var sample MetricsSample
		if err := rows.Scan(&sample.Timestamp, &sample.ServerState, &sample.LedgerSeq,
			&sample.Peers, &sample.LoadFactor); err != nil {
			return nil, fmt.Errorf("scanning metrics sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (s *PostgresStore) RecentTransitions(ctx context.Context, limit int) ([]StateTransition, error) {
	query := `
		SELECT ts, old_state, new_state, duration_in_old_state, ledger_seq, peers, load_factor
		FROM state_transitions
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent transitions: %w", err)
	}
	defer rows.Close()

	var transitions []StateTransition
	for rows.Next() {
		var transition StateTransition
		var durationSeconds float64
		if err := rows.Scan(&transition.Timestamp, &transition.OldState, &transition.NewState,
			&durationSeconds, &transition.LedgerSeq, &transition.Peers, &transition.LoadFactor); err != nil {
			return nil, fmt.Errorf("scanning state transition: %w", err)
		}
		transition.DurationInOldState = time.Duration(durationSeconds * float64(time.Second))
		transitions = append(transitions, transition)
	}
	return transitions, rows.Err()
}
