// Package project tracks issues, phases, dependencies, and decisions for a
// project, scoped by organization. Dependencies form a directed graph that
// may contain cycles; traversal is depth-bounded and cycle-safe.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"codescope/internal/errs"
	"codescope/internal/provider"
	"codescope/internal/provider/sqlitedb"
)

const projectDDL = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS issues (
    org_id      TEXT NOT NULL,
    id          TEXT NOT NULL,
    project_id  TEXT NOT NULL DEFAULT '',
    phase_id    TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'open',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS phases (
    org_id     TEXT NOT NULL,
    id         TEXT NOT NULL,
    project_id TEXT NOT NULL DEFAULT '',
    name       TEXT NOT NULL,
    sequence   INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (org_id, id)
);

CREATE TABLE IF NOT EXISTS dependencies (
    org_id     TEXT NOT NULL,
    id         TEXT NOT NULL,
    from_issue TEXT NOT NULL,
    to_issue   TEXT NOT NULL,
    kind       TEXT NOT NULL DEFAULT 'blocks',
    PRIMARY KEY (org_id, id),
    UNIQUE (org_id, from_issue, to_issue, kind)
);

CREATE TABLE IF NOT EXISTS decisions (
    org_id     TEXT NOT NULL,
    id         TEXT NOT NULL,
    project_id TEXT NOT NULL DEFAULT '',
    title      TEXT NOT NULL,
    rationale  TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    PRIMARY KEY (org_id, id)
);

CREATE INDEX IF NOT EXISTS idx_dep_from ON dependencies (org_id, from_issue);
`

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusInProgress IssueStatus = "in_progress"
	StatusDone       IssueStatus = "done"
	StatusBlocked    IssueStatus = "blocked"
)

// Issue is a tracked unit of work, scoped to an organization.
type Issue struct {
	OrgID       string      `db:"org_id" json:"org_id"`
	ID          string      `db:"id" json:"id"`
	ProjectID   string      `db:"project_id" json:"project_id,omitempty"`
	PhaseID     string      `db:"phase_id" json:"phase_id,omitempty"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description,omitempty"`
	Status      IssueStatus `db:"status" json:"status"`
	CreatedAt   int64       `db:"created_at" json:"created_at"`
	UpdatedAt   int64       `db:"updated_at" json:"updated_at"`
}

// Phase groups issues inside one project, ordered by sequence.
type Phase struct {
	OrgID     string `db:"org_id" json:"org_id"`
	ID        string `db:"id" json:"id"`
	ProjectID string `db:"project_id" json:"project_id,omitempty"`
	Name      string `db:"name" json:"name"`
	Sequence  int    `db:"sequence" json:"sequence"`
}

// Dependency is a directed edge between two issues.
type Dependency struct {
	OrgID     string `db:"org_id" json:"org_id"`
	ID        string `db:"id" json:"id"`
	FromIssue string `db:"from_issue" json:"from_issue"`
	ToIssue   string `db:"to_issue" json:"to_issue"`
	Kind      string `db:"kind" json:"kind"`
}

// Decision records a design or planning decision with its rationale.
type Decision struct {
	OrgID     string `db:"org_id" json:"org_id"`
	ID        string `db:"id" json:"id"`
	ProjectID string `db:"project_id" json:"project_id,omitempty"`
	Title     string `db:"title" json:"title"`
	Rationale string `db:"rationale" json:"rationale,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// Store persists project aggregates through the database port.
type Store struct {
	db    *sqlx.DB
	owned provider.Database // set when the store opened its own handle
	now   func() time.Time
}

// New prepares the project schema on a shared database handle. The caller
// keeps ownership of the handle and closes it after the store.
func New(ctx context.Context, dbh provider.Database) (*Store, error) {
	db := dbh.DB()
	if _, err := db.ExecContext(ctx, projectDDL); err != nil {
		return nil, fmt.Errorf("init project schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// OpenInMemory opens a throwaway store for tests, owning its own handle.
func OpenInMemory(ctx context.Context) (*Store, error) {
	dbh, err := sqlitedb.OpenInMemory()
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, dbh)
	if err != nil {
		dbh.Close()
		return nil, err
	}
	s.owned = dbh
	return s, nil
}

// CreateIssue inserts a new issue and returns it with id and timestamps set.
func (s *Store) CreateIssue(ctx context.Context, issue Issue) (Issue, error) {
	if issue.OrgID == "" {
		return Issue{}, errs.Invalid("org_id", "must not be empty")
	}
	if issue.Title == "" {
		return Issue{}, errs.Invalid("title", "must not be empty")
	}
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.Status == "" {
		issue.Status = StatusOpen
	}
	nowSec := s.now().Unix()
	issue.CreatedAt = nowSec
	issue.UpdatedAt = nowSec

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO issues (org_id, id, project_id, phase_id, title, description, status, created_at, updated_at)
		VALUES (:org_id, :id, :project_id, :phase_id, :title, :description, :status, :created_at, :updated_at)`,
		issue)
	if err != nil {
		return Issue{}, errs.Wrap(errs.KindDatabase, "project.create_issue", err)
	}
	return issue, nil
}

// GetIssue returns one issue in the organization.
func (s *Store) GetIssue(ctx context.Context, orgID, id string) (Issue, error) {
	var issue Issue
	err := s.db.GetContext(ctx, &issue,
		"SELECT * FROM issues WHERE org_id = ? AND id = ?", orgID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Issue{}, errs.NotFound("issue", id)
	}
	if err != nil {
		return Issue{}, errs.Wrap(errs.KindDatabase, "project.get_issue", err)
	}
	return issue, nil
}

// UpdateIssueStatus moves an issue to a new status.
func (s *Store) UpdateIssueStatus(ctx context.Context, orgID, id string, status IssueStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE issues SET status = ?, updated_at = ? WHERE org_id = ? AND id = ?",
		string(status), s.now().Unix(), orgID, id)
	if err != nil {
		return errs.Wrap(errs.KindDatabase, "project.update_issue", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("issue", id)
	}
	return nil
}

// ListIssues returns the project's issues ordered by creation time.
func (s *Store) ListIssues(ctx context.Context, orgID, projectID string) ([]Issue, error) {
	var out []Issue
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM issues WHERE org_id = ? AND project_id = ?
		ORDER BY created_at, id`, orgID, projectID)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "project.list_issues", err)
	}
	return out, nil
}

// AddDependency links two issues. Both endpoints must exist in the same
// organization; self-edges are rejected.
func (s *Store) AddDependency(ctx context.Context, orgID, fromIssue, toIssue, kind string) (Dependency, error) {
	if fromIssue == toIssue {
		return Dependency{}, errs.Invalid("to_issue", "dependency cannot point at its own issue")
	}
	for _, id := range []string{fromIssue, toIssue} {
		if _, err := s.GetIssue(ctx, orgID, id); err != nil {
			return Dependency{}, err
		}
	}
	if kind == "" {
		kind = "blocks"
	}
	dep := Dependency{
		OrgID:     orgID,
		ID:        uuid.NewString(),
		FromIssue: fromIssue,
		ToIssue:   toIssue,
		Kind:      kind,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO dependencies (org_id, id, from_issue, to_issue, kind)
		VALUES (:org_id, :id, :from_issue, :to_issue, :kind)`, dep)
	if err != nil {
		return Dependency{}, errs.Wrap(errs.KindDatabase, "project.add_dependency", err)
	}
	return dep, nil
}

// CreatePhase inserts a project phase.
func (s *Store) CreatePhase(ctx context.Context, phase Phase) (Phase, error) {
	if phase.OrgID == "" {
		return Phase{}, errs.Invalid("org_id", "must not be empty")
	}
	if phase.ID == "" {
		phase.ID = uuid.NewString()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO phases (org_id, id, project_id, name, sequence)
		VALUES (:org_id, :id, :project_id, :name, :sequence)`, phase)
	if err != nil {
		return Phase{}, errs.Wrap(errs.KindDatabase, "project.create_phase", err)
	}
	return phase, nil
}

// RecordDecision stores a decision with its rationale.
func (s *Store) RecordDecision(ctx context.Context, d Decision) (Decision, error) {
	if d.OrgID == "" {
		return Decision{}, errs.Invalid("org_id", "must not be empty")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = s.now().Unix()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO decisions (org_id, id, project_id, title, rationale, created_at)
		VALUES (:org_id, :id, :project_id, :title, :rationale, :created_at)`, d)
	if err != nil {
		return Decision{}, errs.Wrap(errs.KindDatabase, "project.record_decision", err)
	}
	return d, nil
}

// Decisions lists a project's decisions newest first.
func (s *Store) Decisions(ctx context.Context, orgID, projectID string) ([]Decision, error) {
	var out []Decision
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM decisions WHERE org_id = ? AND project_id = ?
		ORDER BY created_at DESC, id`, orgID, projectID)
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "project.decisions", err)
	}
	return out, nil
}

// Close releases the store's own handle; a shared handle stays open for its
// owner to close.
func (s *Store) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}
