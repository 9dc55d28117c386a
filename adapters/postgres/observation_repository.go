// Package postgres persists site observations and validation reports. It
// sits on the storage side of the core boundary; the pipeline itself never
// performs I/O.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"cmsig/domain/core"
	"cmsig/domain/signal"
	"cmsig/domain/validation"
	"cmsig/ports"
)

// observationRepository implements the ObservationRepository interface
type observationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *sqlx.DB) ports.ObservationRepository {
	return &observationRepository{db: db}
}

// Schema creates the repository tables if they do not exist.
func Schema(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS site_observations (
			site_id TEXT PRIMARY KEY,
			cms TEXT NOT NULL DEFAULT 'Unknown',
			header_signals TEXT[] NOT NULL DEFAULT '{}',
			meta_signals TEXT[] NOT NULL DEFAULT '{}',
			script_signals TEXT[] NOT NULL DEFAULT '{}',
			collected_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS validation_reports (
			run_id TEXT PRIMARY KEY,
			overall_passed BOOLEAN NOT NULL,
			completed_stages INT NOT NULL,
			report JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveObservations upserts a batch of collector observations.
func (r *observationRepository) SaveObservations(ctx context.Context, observations []signal.SiteObservation) error {
	query := `INSERT INTO site_observations (
		site_id, cms, header_signals, meta_signals, script_signals
	) VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (site_id) DO UPDATE SET
		cms = EXCLUDED.cms,
		header_signals = EXCLUDED.header_signals,
		meta_signals = EXCLUDED.meta_signals,
		script_signals = EXCLUDED.script_signals,
		collected_at = now()`

	for _, obs := range observations {
		cms := obs.CMS
		if cms == "" {
			cms = signal.CMSUnknown
		}
		_, err := r.db.ExecContext(ctx, query,
			obs.SiteID.String(), string(cms),
			pq.Array(obs.HeaderSignals), pq.Array(obs.MetaSignals), pq.Array(obs.ScriptSignals),
		)
		if err != nil {
			return fmt.Errorf("failed to save observation %s: %w", obs.SiteID, err)
		}
	}
	return nil
}

// LoadStore reads every observation into a store snapshot.
func (r *observationRepository) LoadStore(ctx context.Context) (*signal.Store, error) {
	query := `SELECT site_id, COALESCE(cms, 'Unknown') AS cms,
		header_signals, meta_signals, script_signals
	FROM site_observations
	ORDER BY site_id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []signal.SiteObservation
	for rows.Next() {
		var (
			siteID, cms            string
			headers, metas, script pq.StringArray
		)
		if err := rows.Scan(&siteID, &cms, &headers, &metas, &script); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, signal.SiteObservation{
			SiteID:        core.SiteID(siteID),
			CMS:           signal.CMSLabel(cms),
			HeaderSignals: headers,
			MetaSignals:   metas,
			ScriptSignals: script,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}

	return signal.NewStore(observations), nil
}

// SaveReport stores the full report as JSONB alongside its verdict columns.
func (r *observationRepository) SaveReport(ctx context.Context, report *validation.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `INSERT INTO validation_reports (run_id, overall_passed, completed_stages, report)
	VALUES ($1, $2, $3, $4)`

	_, err = r.db.ExecContext(ctx, query,
		report.RunID.String(), report.OverallPassed, report.CompletedStages, payload)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// GetReport retrieves a stored report by run ID.
func (r *observationRepository) GetReport(ctx context.Context, runID core.RunID) (*validation.Report, error) {
	query := `SELECT report FROM validation_reports WHERE run_id = $1`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, runID.String()).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("report not found: %s", runID)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var report validation.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
