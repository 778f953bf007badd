package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ollama-bench/ollama-bench/internal/benchmark"
	"github.com/ollama-bench/ollama-bench/internal/gpu"
	"github.com/ollama-bench/ollama-bench/internal/sysinfo"
)

// Run is one persisted benchmark sweep: the machine and GPU snapshot it
// ran under plus the per-model results in sweep order.
type Run struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Prompt    string             `json:"prompt"`
	Machine   sysinfo.Spec       `json:"machine"`
	GPU       gpu.Status         `json:"gpu"`
	Results   []benchmark.Result `json:"results,omitempty"`

	ModelCount   int `json:"model_count"`
	SuccessCount int `json:"success_count"`
}

// ModelResult is one model's outcome joined with its run's timestamp,
// used for per-model history queries.
type ModelResult struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	benchmark.Result
}

// RunStore handles benchmark run persistence
type RunStore struct {
	db *DB
}

// NewRunStore creates a new run store
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRun inserts a run and its results in one transaction. It fills
// in the run's ID and CreatedAt when they are zero.
func (s *RunStore) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.ModelCount = len(run.Results)
	run.SuccessCount = 0
	for _, r := range run.Results {
		if r.Succeeded() {
			run.SuccessCount++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, prompt,
			os, os_version, cpu, physical_cores, logical_cores, memory_gb, arch, ollama_version,
			gpu_available, gpu_in_use, gpu_backend, gpu_layers,
			model_count, success_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.CreatedAt, run.Prompt,
		run.Machine.OS, run.Machine.OSVersion, run.Machine.CPU,
		run.Machine.PhysicalCores, run.Machine.LogicalCores, run.Machine.MemoryGB,
		run.Machine.Arch, run.Machine.RuntimeVersion,
		run.GPU.GPUAvailable, run.GPU.GPUInUse, run.GPU.Backend, run.GPU.GPULayers,
		run.ModelCount, run.SuccessCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for i, res := range run.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO results (
				run_id, position, model, status,
				first_token_ms, tokens_per_sec, total_time_s, token_count, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID, i, res.Model, res.Status,
			res.FirstTokenMS, res.TokensPerSec, res.TotalSeconds, res.TokenCount, res.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to create result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, including its results in sweep order.
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			id, created_at, prompt,
			os, os_version, cpu, physical_cores, logical_cores, memory_gb, arch, ollama_version,
			gpu_available, gpu_in_use, gpu_backend, gpu_layers,
			model_count, success_count
		FROM runs
		WHERE id = ?
	`, id).Scan(
		&run.ID, &run.CreatedAt, &run.Prompt,
		&run.Machine.OS, &run.Machine.OSVersion, &run.Machine.CPU,
		&run.Machine.PhysicalCores, &run.Machine.LogicalCores, &run.Machine.MemoryGB,
		&run.Machine.Arch, &run.Machine.RuntimeVersion,
		&run.GPU.GPUAvailable, &run.GPU.GPUInUse, &run.GPU.Backend, &run.GPU.GPULayers,
		&run.ModelCount, &run.SuccessCount,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model, status, first_token_ms, tokens_per_sec, total_time_s, token_count, error
		FROM results
		WHERE run_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res benchmark.Result
		var errText sql.NullString
		if err := rows.Scan(
			&res.Model, &res.Status,
			&res.FirstTokenMS, &res.TokensPerSec, &res.TotalSeconds, &res.TokenCount,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Error = errText.String
		run.Results = append(run.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run results: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first, without their
// per-model results.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id, created_at, prompt,
			os, os_version, cpu, physical_cores, logical_cores, memory_gb, arch, ollama_version,
			gpu_available, gpu_in_use, gpu_backend, gpu_layers,
			model_count, success_count
		FROM runs
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(
			&run.ID, &run.CreatedAt, &run.Prompt,
			&run.Machine.OS, &run.Machine.OSVersion, &run.Machine.CPU,
			&run.Machine.PhysicalCores, &run.Machine.LogicalCores, &run.Machine.MemoryGB,
			&run.Machine.Arch, &run.Machine.RuntimeVersion,
			&run.GPU.GPUAvailable, &run.GPU.GPUInUse, &run.GPU.Backend, &run.GPU.GPULayers,
			&run.ModelCount, &run.SuccessCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	return runs, nil
}

// ListModelResults returns a model's results across runs, newest first.
func (s *RunStore) ListModelResults(ctx context.Context, model string, limit int) ([]*ModelResult, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			r.run_id, runs.created_at,
			r.model, r.status, r.first_token_ms, r.tokens_per_sec, r.total_time_s, r.token_count, r.error
		FROM results r
		JOIN runs ON runs.id = r.run_id
		WHERE r.model = ?
		ORDER BY runs.created_at DESC, r.run_id
		LIMIT ?
	`, model, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list model results: %w", err)
	}
	defer rows.Close()

	var results []*ModelResult
	for rows.Next() {
		res := &ModelResult{}
		var errText sql.NullString
		if err := rows.Scan(
			&res.RunID, &res.CreatedAt,
			&res.Model, &res.Status,
			&res.FirstTokenMS, &res.TokensPerSec, &res.TotalSeconds, &res.TokenCount,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan model result: %w", err)
		}
		res.Error = errText.String
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read model results: %w", err)
	}

	return results, nil
}
