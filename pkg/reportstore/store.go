// Package reportstore persists a completed Investigation's Report so
// Alerter's phase 2 enrichment can carry a stable reference to it
// (spec.md §4.9), without re-implementing the full report database/viewer
// spec.md explicitly places out of scope.
//
// Grounded on the teacher's pkg/database (NewClient's pgx-driver DSN
// construction, PingContext probe, golang-migrate-with-embedded-FS
// migration-on-startup workflow), adapted from an ent-backed client to a
// direct jackc/pgx/v5/pgxpool pool, since the generated ent client was
// never retrieved into the pack (see DESIGN.md's dropped-dependency entry).
package reportstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrate

	"github.com/seraphhq/seraph/pkg/investigation"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the pool DSN.
type Config struct {
	DSN string
}

// Store persists Reports keyed by incident ID.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres, applies any pending migrations, and returns a
// ready Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := runMigrations(cfg.DSN); err != nil {
		return nil, fmt.Errorf("reportstore: migrate: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("reportstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reportstore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Put upserts incidentID's Report and returns incidentID itself as the
// stable reference Alerter.Enrich forwards to the sink payload.
func (s *Store) Put(ctx context.Context, incidentID string, report *investigation.Report) (string, error) {
	remediation, err := json.Marshal(report.SuggestedRemediation)
	if err != nil {
		return "", fmt.Errorf("reportstore: marshal remediation: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO investigation_reports (incident_id, root_cause_analysis, impact_assessment, suggested_remediation, unstructured, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (incident_id) DO UPDATE SET
			root_cause_analysis = EXCLUDED.root_cause_analysis,
			impact_assessment = EXCLUDED.impact_assessment,
			suggested_remediation = EXCLUDED.suggested_remediation,
			unstructured = EXCLUDED.unstructured,
			updated_at = now()
	`, incidentID, report.RootCauseAnalysis, report.ImpactAssessment, remediation, report.Unstructured)
	if err != nil {
		return "", fmt.Errorf("reportstore: upsert: %w", err)
	}
	return incidentID, nil
}

// Get fetches a previously-persisted Report by incident ID.
func (s *Store) Get(ctx context.Context, incidentID string) (*investigation.Report, error) {
	var report investigation.Report
	var remediation []byte
	row := s.pool.QueryRow(ctx, `
		SELECT root_cause_analysis, impact_assessment, suggested_remediation, unstructured
		FROM investigation_reports WHERE incident_id = $1
	`, incidentID)
	if err := row.Scan(&report.RootCauseAnalysis, &report.ImpactAssessment, &remediation, &report.Unstructured); err != nil {
		return nil, fmt.Errorf("reportstore: get %s: %w", incidentID, err)
	}
	if err := json.Unmarshal(remediation, &report.SuggestedRemediation); err != nil {
		return nil, fmt.Errorf("reportstore: unmarshal remediation: %w", err)
	}
	return &report, nil
}
