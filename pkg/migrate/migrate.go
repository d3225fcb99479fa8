// Package migrate applies versioned SQL schema migrations to a SQLite
// database. Every applied version is recorded as one row of a version table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Latest targets the newest known migration.
const Latest = -1

const versionTable = "schema_migrations"

// Migration is one numbered schema change with its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Source supplies the known migrations.
type Source interface {
	Migrations() ([]Migration, error)
}

// Step applies or rolls back a single migration.
type Step struct {
	Migration Migration
	Up        bool
}

func (s Step) direction() string {
	if s.Up {
		return "up"
	}
	return "down"
}

func (s Step) sql() string {
	if s.Up {
		return s.Migration.Up
	}
	return s.Migration.Down
}

// Plan is the ordered list of steps that moves the schema from one version
// to another.
type Plan struct {
	From  int
	To    int
	Steps []Step
}

// Fresh reports whether the plan builds the schema from nothing.
func (p Plan) Fresh() bool {
	return p.From == 0 && len(p.Steps) > 0
}

// Applied is a version recorded in the version table.
type Applied struct {
	Version   int
	AppliedAt time.Time
}

// Status describes where a database stands against the known migrations.
type Status struct {
	Current int
	Latest  int
	Applied []Applied
	Pending []Migration
}

// UpToDate reports whether no migration is pending.
func (s Status) UpToDate() bool {
	return len(s.Pending) == 0
}

// Migrator plans and applies migrations from a Source
type Migrator struct {
	db     *sql.DB
	source Source
	logger *zap.SugaredLogger
}

// NewMigrator creates a migrator. A nil logger discards output.
func NewMigrator(db *sql.DB, source Source, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:     db,
		source: source,
		logger: logger,
	}
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) (Plan, error) {
	return m.To(ctx, Latest)
}

// To migrates up or down until target is the current version. Target 0
// rolls back everything.
func (m *Migrator) To(ctx context.Context, target int) (Plan, error) {
	plan, err := m.Plan(ctx, target)
	if err != nil {
		return Plan{}, err
	}
	return plan, m.Apply(ctx, plan)
}

// Down rolls back the n most recently applied migrations
func (m *Migrator) Down(ctx context.Context, n int) (Plan, error) {
	target, err := m.DownTarget(ctx, n)
	if err != nil {
		return Plan{}, err
	}
	return m.To(ctx, target)
}

// DownTarget returns the version left after rolling back the n most recently
// applied migrations.
func (m *Migrator) DownTarget(ctx context.Context, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("number of migrations to roll back must be positive, got %d", n)
	}

	migrations, err := m.migrations()
	if err != nil {
		return 0, err
	}
	current, err := m.Current(ctx)
	if err != nil {
		return 0, err
	}

	var applied []int
	for _, mig := range migrations {
		if mig.Version <= current {
			applied = append(applied, mig.Version)
		}
	}
	if n > len(applied) {
		return 0, fmt.Errorf("cannot roll back %d migrations, only %d applied", n, len(applied))
	}

	if i := len(applied) - n - 1; i >= 0 {
		return applied[i], nil
	}
	return 0, nil
}

// Plan works out the steps from the current version to target without
// changing the database.
func (m *Migrator) Plan(ctx context.Context, target int) (Plan, error) {
	migrations, err := m.migrations()
	if err != nil {
		return Plan{}, err
	}
	current, err := m.Current(ctx)
	if err != nil {
		return Plan{}, err
	}

	if target == Latest {
		target = 0
		if len(migrations) > 0 {
			target = migrations[len(migrations)-1].Version
		}
	}
	if target != 0 && !slices.ContainsFunc(migrations, func(mig Migration) bool { return mig.Version == target }) {
		return Plan{}, fmt.Errorf("unknown target version %d", target)
	}

	plan := Plan{From: current, To: target}
	switch {
	case target > current:
		for _, mig := range migrations {
			if mig.Version > current && mig.Version <= target {
				plan.Steps = append(plan.Steps, Step{Migration: mig, Up: true})
			}
		}
	case target < current:
		for _, mig := range slices.Backward(migrations) {
			if mig.Version > target && mig.Version <= current {
				if mig.Down == "" {
					return Plan{}, fmt.Errorf("migration %d (%s) cannot be rolled back", mig.Version, mig.Name)
				}
				plan.Steps = append(plan.Steps, Step{Migration: mig, Up: false})
			}
		}
	}

	return plan, nil
}

// Apply runs the steps of plan, each in its own transaction together with
// the version table update.
func (m *Migrator) Apply(ctx context.Context, plan Plan) error {
	if len(plan.Steps) == 0 {
		return nil
	}
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	for _, step := range plan.Steps {
		if err := m.applyStep(ctx, step); err != nil {
			return fmt.Errorf("migration %d %s: %w", step.Migration.Version, step.direction(), err)
		}
		m.logger.Infow("applied migration",
			"version", step.Migration.Version,
			"name", step.Migration.Name,
			"direction", step.direction())
	}
	return nil
}

func (m *Migrator) applyStep(ctx context.Context, step Step) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.sql()); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}

	if step.Up {
		_, err = tx.ExecContext(ctx, `INSERT INTO `+versionTable+` (version, applied_at) VALUES (?, ?)`,
			step.Migration.Version, time.Now().UTC().Format(time.RFC3339))
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM `+versionTable+` WHERE version = ?`, step.Migration.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to record version: %w", err)
	}

	return tx.Commit()
}

// Current returns the newest applied version, 0 for an untouched database.
// It never creates the version table.
func (m *Migrator) Current(ctx context.Context) (int, error) {
	exists, err := m.versionTableExists(ctx)
	if err != nil || !exists {
		return 0, err
	}

	var version int
	err = m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM `+versionTable).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Status compares the database with the known migrations. It does not
// modify the database.
func (m *Migrator) Status(ctx context.Context) (Status, error) {
	migrations, err := m.migrations()
	if err != nil {
		return Status{}, err
	}
	current, err := m.Current(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{Current: current}
	if len(migrations) > 0 {
		st.Latest = migrations[len(migrations)-1].Version
	}
	for _, mig := range migrations {
		if mig.Version > current {
			st.Pending = append(st.Pending, mig)
		}
	}

	st.Applied, err = m.applied(ctx)
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

func (m *Migrator) applied(ctx context.Context) ([]Applied, error) {
	exists, err := m.versionTableExists(ctx)
	if err != nil || !exists {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM `+versionTable+` ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var out []Applied
	for rows.Next() {
		var a Applied
		var at string
		if err := rows.Scan(&a.Version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration: %w", err)
		}
		if a.AppliedAt, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("invalid applied_at %q for version %d: %w", at, a.Version, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (m *Migrator) migrations() ([]Migration, error) {
	migrations, err := m.source.Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	return migrations, nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+versionTable+` (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", versionTable, err)
	}
	return nil
}

func (m *Migrator) versionTableExists(ctx context.Context) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, versionTable).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", versionTable, err)
	}
	return n > 0, nil
}
