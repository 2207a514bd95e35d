package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flowmesh-ai/flowmesh/pkg/models"
)

// Schema is the DDL for the engine's tables. The seed command and the
// integration tests apply it; production deployments manage migrations
// externally.
const Schema = `
CREATE TABLE IF NOT EXISTS workflows (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	mode        TEXT NOT NULL,
	version     INT NOT NULL DEFAULT 1,
	nodes       JSONB NOT NULL,
	edges       JSONB NOT NULL,
	trigger     JSONB NOT NULL,
	variables   JSONB,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	workflow_id  TEXT NOT NULL,
	status       TEXT NOT NULL,
	trigger      TEXT NOT NULL DEFAULT '',
	input        JSONB,
	output       JSONB,
	error        TEXT NOT NULL DEFAULT '',
	steps        JSONB NOT NULL,
	suspended_at TEXT,
	resume_data  JSONB,
	snapshot     JSONB,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS runs_workflow_id_idx ON runs (workflow_id, started_at DESC);

CREATE TABLE IF NOT EXISTS facts (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	thread_id  TEXT NOT NULL,
	fact       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS facts_user_id_idx ON facts (user_id);
`

// EnsureSchema applies the engine schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// PostgresWorkflowStore is a PostgreSQL implementation of WorkflowStore.
type PostgresWorkflowStore struct {
	db *pgxpool.Pool
}

// NewPostgresWorkflowStore creates a new PostgresWorkflowStore.
func NewPostgresWorkflowStore(db *pgxpool.Pool) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

func (s *PostgresWorkflowStore) Create(ctx context.Context, wf *models.Workflow) error {
	nodes, edges, trigger, variables, err := encodeWorkflowColumns(wf)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO workflows (id, name, description, status, mode, version, nodes, edges, trigger, variables, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		wf.ID, wf.Name, wf.Description, wf.Status, wf.Mode, wf.Version,
		nodes, edges, trigger, variables, wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return nil
}

func (s *PostgresWorkflowStore) Update(ctx context.Context, wf *models.Workflow) error {
	nodes, edges, trigger, variables, err := encodeWorkflowColumns(wf)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE workflows
		SET name = $2, description = $3, status = $4, mode = $5, version = $6,
		    nodes = $7, edges = $8, trigger = $9, variables = $10, updated_at = $11
		WHERE id = $1`,
		wf.ID, wf.Name, wf.Description, wf.Status, wf.Mode, wf.Version,
		nodes, edges, trigger, variables, wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %q: %w", wf.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresWorkflowStore) Get(ctx context.Context, id string) (*models.Workflow, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, description, status, mode, version, nodes, edges, trigger, variables, created_at, updated_at
		FROM workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workflow %q: %w", id, ErrNotFound)
	}
	return wf, err
}

func (s *PostgresWorkflowStore) List(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, status, mode, version, nodes, edges, trigger, variables, created_at, updated_at
		FROM workflows ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

func (s *PostgresWorkflowStore) ListScheduled(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, description, status, mode, version, nodes, edges, trigger, variables, created_at, updated_at
		FROM workflows
		WHERE status = $1 AND trigger->>'type' = $2
		ORDER BY created_at`,
		models.WorkflowStatusActive, models.TriggerTypeSchedule)
	if err != nil {
		return nil, fmt.Errorf("list scheduled workflows: %w", err)
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

func encodeWorkflowColumns(wf *models.Workflow) (nodes, edges, trigger, variables []byte, err error) {
	if nodes, err = json.Marshal(wf.Nodes); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode nodes: %w", err)
	}
	if edges, err = json.Marshal(wf.Edges); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode edges: %w", err)
	}
	if trigger, err = json.Marshal(wf.Trigger); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode trigger: %w", err)
	}
	if wf.Variables != nil {
		if variables, err = json.Marshal(wf.Variables); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode variables: %w", err)
		}
	}
	return nodes, edges, trigger, variables, nil
}

func scanWorkflow(row pgx.Row) (*models.Workflow, error) {
	var wf models.Workflow
	var nodes, edges, trigger, variables []byte
	err := row.Scan(&wf.ID, &wf.Name, &wf.Description, &wf.Status, &wf.Mode, &wf.Version,
		&nodes, &edges, &trigger, &variables, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(nodes, &wf.Nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	if err := json.Unmarshal(edges, &wf.Edges); err != nil {
		return nil, fmt.Errorf("decode edges: %w", err)
	}
	if err := json.Unmarshal(trigger, &wf.Trigger); err != nil {
		return nil, fmt.Errorf("decode trigger: %w", err)
	}
	if variables != nil {
		if err := json.Unmarshal(variables, &wf.Variables); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	return &wf, nil
}

func collectWorkflows(rows pgx.Rows) ([]*models.Workflow, error) {
	var out []*models.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

// PostgresRunStore is a PostgreSQL implementation of RunStore.
type PostgresRunStore struct {
	db *pgxpool.Pool
}

// NewPostgresRunStore creates a new PostgresRunStore.
func NewPostgresRunStore(db *pgxpool.Pool) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

func (s *PostgresRunStore) Create(ctx context.Context, run *models.Run) error {
	input, output, steps, resumeData, snapshot, err := encodeRunColumns(run)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO runs (id, workflow_id, status, trigger, input, output, error, steps, suspended_at, resume_data, snapshot, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		run.ID, run.WorkflowID, run.Status, run.Trigger, input, output, run.Error,
		steps, run.SuspendedAt, resumeData, snapshot, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Save persists everything except status and completed_at; see RunStore.
func (s *PostgresRunStore) Save(ctx context.Context, run *models.Run) error {
	input, output, steps, resumeData, snapshot, err := encodeRunColumns(run)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE runs
		SET input = $2, output = $3, error = $4, steps = $5, suspended_at = $6,
		    resume_data = $7, snapshot = $8
		WHERE id = $1`,
		run.ID, input, output, run.Error, steps, run.SuspendedAt,
		resumeData, snapshot,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %q: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresRunStore) Get(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, workflow_id, status, trigger, input, output, error, steps, suspended_at, resume_data, snapshot, started_at, completed_at
		FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	return run, err
}

func (s *PostgresRunStore) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, workflow_id, status, trigger, input, output, error, steps, suspended_at, resume_data, snapshot, started_at, completed_at
		FROM runs WHERE workflow_id = $1 ORDER BY started_at DESC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *PostgresRunStore) TransitionStatus(ctx context.Context, id string, from, to models.RunStatus) (bool, error) {
	var completedAt *time.Time
	if to.Terminal() {
		now := time.Now().UTC()
		completedAt = &now
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE runs
		SET status = $3, completed_at = COALESCE(completed_at, $4)
		WHERE id = $1 AND status = $2`,
		id, from, to, completedAt)
	if err != nil {
		return false, fmt.Errorf("transition run status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func encodeRunColumns(run *models.Run) (input, output, steps, resumeData, snapshot []byte, err error) {
	if run.Input != nil {
		if input, err = json.Marshal(run.Input); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("encode input: %w", err)
		}
	}
	if run.Output != nil {
		if output, err = json.Marshal(run.Output); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("encode output: %w", err)
		}
	}
	stepLog := run.Steps
	if stepLog == nil {
		stepLog = []models.StepLogEntry{}
	}
	if steps, err = json.Marshal(stepLog); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("encode steps: %w", err)
	}
	if run.ResumeData != nil {
		if resumeData, err = json.Marshal(run.ResumeData); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("encode resume data: %w", err)
		}
	}
	if run.Snapshot != nil {
		if snapshot, err = json.Marshal(run.Snapshot); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("encode snapshot: %w", err)
		}
	}
	return input, output, steps, resumeData, snapshot, nil
}

func scanRun(row pgx.Row) (*models.Run, error) {
	var run models.Run
	var input, output, steps, resumeData, snapshot []byte
	err := row.Scan(&run.ID, &run.WorkflowID, &run.Status, &run.Trigger, &input, &output,
		&run.Error, &steps, &run.SuspendedAt, &resumeData, &snapshot, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if input != nil {
		if err := json.Unmarshal(input, &run.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
	}
	if output != nil {
		if err := json.Unmarshal(output, &run.Output); err != nil {
			return nil, fmt.Errorf("decode output: %w", err)
		}
	}
	if err := json.Unmarshal(steps, &run.Steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	if resumeData != nil {
		if err := json.Unmarshal(resumeData, &run.ResumeData); err != nil {
			return nil, fmt.Errorf("decode resume data: %w", err)
		}
	}
	if snapshot != nil {
		if err := json.Unmarshal(snapshot, &run.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	return &run, nil
}

// PostgresFactStore is a PostgreSQL implementation of FactStore.
type PostgresFactStore struct {
	db *pgxpool.Pool
}

// NewPostgresFactStore creates a new PostgresFactStore.
func NewPostgresFactStore(db *pgxpool.Pool) *PostgresFactStore {
	return &PostgresFactStore{db: db}
}

func (s *PostgresFactStore) SaveFacts(ctx context.Context, userID, threadID string, facts []string) error {
	for _, fact := range facts {
		_, err := s.db.Exec(ctx,
			`INSERT INTO facts (id, user_id, thread_id, fact) VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), userID, threadID, fact)
		if err != nil {
			return fmt.Errorf("insert fact: %w", err)
		}
	}
	return nil
}
