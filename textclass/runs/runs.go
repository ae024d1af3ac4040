// Package runs keeps a small ledger of training runs so artifacts stay
// traceable to the dataset, label vocabulary and metrics that produced them.
package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"
)

// Run is one recorded training run.
type Run struct {
	ID          uuid.UUID
	DatasetPath string
	ModelID     string
	Pooling     string
	LabelValues []string
	Metrics     map[string]float64
	ArtifactDir string
	CreatedAt   time.Time
}

// Ledger provides append/list access to the runs database.
type Ledger struct {
	db *sql.DB
}

// Open opens or initializes the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create ledger directory: %w", err)
	}
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	ledger := &Ledger{db: db}
	if err := ledger.init(); err != nil {
		db.Close()
		return nil, err
	}
	return ledger, nil
}

// init sets up the runs table.
func (l *Ledger) init() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY UNIQUE,
		dataset_path TEXT,
		model_id TEXT,
		pooling TEXT,
		label_values TEXT,
		metrics TEXT,
		artifact_dir TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

// Record inserts a run, assigning it a fresh id.
func (l *Ledger) Record(run *Run) error {
	run.ID = uuid.New()
	run.CreatedAt = time.Now()

	labelsJSON, err := json.Marshal(run.LabelValues)
	if err != nil {
		return fmt.Errorf("failed to encode label values: %w", err)
	}
	metricsJSON, err := json.Marshal(run.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	result, err := l.db.Exec(
		`INSERT INTO runs (id, dataset_path, model_id, pooling, label_values, metrics, artifact_dir) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.DatasetPath, run.ModelID, run.Pooling, string(labelsJSON), string(metricsJSON), run.ArtifactDir)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("expected 1 row affected, got %d", rowsAffected)
	}

	slog.Debug("Recorded training run", "id", run.ID, "dataset", run.DatasetPath)
	return nil
}

// List returns all recorded runs, most recent first.
func (l *Ledger) List() ([]Run, error) {
	rows, err := l.db.Query(
		`SELECT id, dataset_path, model_id, pooling, label_values, metrics, artifact_dir, created_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var idStr, labelsJSON, metricsJSON, createdAt string
		if err := rows.Scan(&idStr, &run.DatasetPath, &run.ModelID, &run.Pooling,
			&labelsJSON, &metricsJSON, &run.ArtifactDir, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			run.CreatedAt = ts
		} else if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			run.CreatedAt = ts
		}
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run id: %w", err)
		}
		run.ID = parsed
		if err := json.Unmarshal([]byte(labelsJSON), &run.LabelValues); err != nil {
			return nil, fmt.Errorf("failed to decode label values: %w", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &run.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
