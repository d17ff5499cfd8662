package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/fossilsync/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// taskRow mirrors the tasks table.
type taskRow struct {
	UUID        string       `db:"uuid"`
	Target      string       `db:"target"`
	UniqueKey   string       `db:"unique_key"`
	Description string       `db:"description"`
	Project     string       `db:"project"`
	Priority    string       `db:"priority"`
	Status      string       `db:"status"`
	Tags        string       `db:"tags"`
	Annotations string       `db:"annotations"`
	UDAs        string       `db:"udas"`
	Entry       time.Time    `db:"entry"`
	Modified    time.Time    `db:"modified"`
	End         sql.NullTime `db:"end_time"`
}

const taskColumns = `uuid, target, unique_key, description, project, priority,
	status, tags, annotations, udas, entry, modified, end_time`

func (r taskRow) task() (model.Task, error) {
	t := model.Task{
		UUID:        r.UUID,
		Target:      r.Target,
		UniqueKey:   r.UniqueKey,
		Description: r.Description,
		Project:     r.Project,
		Priority:    model.Priority(r.Priority),
		Status:      r.Status,
		Entry:       r.Entry,
		Modified:    r.Modified,
	}
	if r.End.Valid {
		t.End = r.End.Time
	}

	if err := json.Unmarshal([]byte(r.Tags), &t.Tags); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling tags of task %s: %w", r.UUID, err)
	}
	if err := json.Unmarshal([]byte(r.Annotations), &t.Annotations); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling annotations of task %s: %w", r.UUID, err)
	}
	if err := json.Unmarshal([]byte(r.UDAs), &t.UDAs); err != nil {
		return model.Task{}, fmt.Errorf("unmarshaling udas of task %s: %w", r.UUID, err)
	}
	return t, nil
}

func rowFromTask(t model.Task) (taskRow, error) {
	tags, err := marshalList(t.Tags)
	if err != nil {
		return taskRow{}, fmt.Errorf("marshaling tags: %w", err)
	}
	annotations, err := marshalList(t.Annotations)
	if err != nil {
		return taskRow{}, fmt.Errorf("marshaling annotations: %w", err)
	}
	udas := t.UDAs
	if udas == nil {
		udas = map[string]string{}
	}
	udaJSON, err := json.Marshal(udas)
	if err != nil {
		return taskRow{}, fmt.Errorf("marshaling udas: %w", err)
	}

	r := taskRow{
		UUID:        t.UUID,
		Target:      t.Target,
		UniqueKey:   t.UniqueKey,
		Description: t.Description,
		Project:     t.Project,
		Priority:    string(t.Priority),
		Status:      t.Status,
		Tags:        tags,
		Annotations: annotations,
		UDAs:        string(udaJSON),
		Entry:       t.Entry.UTC(),
		Modified:    t.Modified.UTC(),
	}
	if !t.End.IsZero() {
		r.End = sql.NullTime{Time: t.End.UTC(), Valid: true}
	}
	return r, nil
}

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

// SyncTarget implements Store. All changes of one call are applied in a
// single transaction.
func (s *SQLiteStore) SyncTarget(
	ctx context.Context,
	target string,
	tasks []model.Task,
) (SyncResult, error) {
	var result SyncResult

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rows []taskRow
	err = tx.SelectContext(ctx, &rows,
		"SELECT "+taskColumns+" FROM tasks WHERE target = ?", target)
	if err != nil {
		return result, fmt.Errorf("loading tasks of %s: %w", target, err)
	}

	existing := make(map[string]model.Task, len(rows))
	for _, r := range rows {
		t, err := r.task()
		if err != nil {
			return result, err
		}
		existing[t.UniqueKey] = t
	}

	now := s.now()
	seen := make(map[string]bool, len(tasks))

	for _, incoming := range tasks {
		if seen[incoming.UniqueKey] {
			continue
		}
		seen[incoming.UniqueKey] = true

		incoming.Target = target
		incoming.Status = model.StatusPending
		incoming.End = time.Time{}

		current, ok := existing[incoming.UniqueKey]
		if !ok {
			incoming.UUID = uuid.New().String()
			incoming.Entry = now
			incoming.Modified = now
			if err := insertTask(ctx, tx, incoming); err != nil {
				return result, err
			}
			result.Added++
			continue
		}

		if current.SameContent(incoming) {
			continue
		}

		incoming.UUID = current.UUID
		incoming.Entry = current.Entry
		incoming.Modified = now
		if err := updateTask(ctx, tx, incoming); err != nil {
			return result, err
		}
		result.Updated++
	}

	for key, t := range existing {
		if seen[key] || t.Status != model.StatusPending {
			continue
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE tasks SET status = ?, end_time = ?, modified = ? WHERE uuid = ?",
			model.StatusCompleted, now, now, t.UUID,
		)
		if err != nil {
			return result, fmt.Errorf("completing task %s: %w", t.UUID, err)
		}
		result.Completed++
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("committing sync of %s: %w", target, err)
	}
	return result, nil
}

func insertTask(ctx context.Context, tx *sqlx.Tx, t model.Task) error {
	r, err := rowFromTask(t)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.UniqueKey, err)
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`) VALUES (
			:uuid, :target, :unique_key, :description, :project, :priority,
			:status, :tags, :annotations, :udas, :entry, :modified, :end_time
		)`, r)
	if err != nil {
		return fmt.Errorf("inserting task %s: %w", t.UniqueKey, err)
	}
	return nil
}

func updateTask(ctx context.Context, tx *sqlx.Tx, t model.Task) error {
	r, err := rowFromTask(t)
	if err != nil {
		return fmt.Errorf("task %s: %w", t.UniqueKey, err)
	}

	_, err = tx.NamedExecContext(ctx, `
		UPDATE tasks SET
			description = :description, project = :project,
			priority = :priority, status = :status, tags = :tags,
			annotations = :annotations, udas = :udas,
			modified = :modified, end_time = :end_time
		WHERE uuid = :uuid`, r)
	if err != nil {
		return fmt.Errorf("updating task %s: %w", t.UniqueKey, err)
	}
	return nil
}

// GetTasks retrieves tasks matching filter, ordered by target and entry.
func (s *SQLiteStore) GetTasks(
	ctx context.Context,
	filter TaskFilter,
) ([]model.Task, error) {
	var conditions []string
	var args []interface{}

	if filter.Target != "" {
		conditions = append(conditions, "target = ?")
		args = append(args, filter.Target)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + taskColumns + " FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY target, entry, unique_key"

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.task()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// GetTaskByKey retrieves the task of target with the given unique key.
func (s *SQLiteStore) GetTaskByKey(
	ctx context.Context,
	target, uniqueKey string,
) (*model.Task, error) {
	var r taskRow
	err := s.db.GetContext(ctx, &r,
		"SELECT "+taskColumns+" FROM tasks WHERE target = ? AND unique_key = ?",
		target, uniqueKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting task %s/%s: %w", target, uniqueKey, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s/%s: %w", target, uniqueKey, err)
	}

	t, err := r.task()
	if err != nil {
		return nil, err
	}
	return &t, nil
}
