package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/surgidocs/opreport-tracker/internal/entity"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS operations (
	id         TEXT PRIMARY KEY,
	op_id      TEXT NOT NULL UNIQUE,
	op_date    TEXT NOT NULL,
	complete   INTEGER NOT NULL DEFAULT 0,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

type sqliteRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the database file and ensures
// the schema. Suited to single-node deployments and tests.
func NewSQLiteRepository(path string, logger *slog.Logger) (OperationRepository, *sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = "opreports.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("repository.sqlite.open", "path", path)
	return &sqliteRepo{db: db, logger: logger}, db, nil
}

func (r *sqliteRepo) FindByOpID(ctx context.Context, opID string) (*entity.Operation, error) {
	return scanOperation(r.db.QueryRowContext(ctx,
		`SELECT payload FROM operations WHERE op_id = ?`, opID))
}

func (r *sqliteRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx,
		`SELECT payload FROM operations WHERE id = ?`, id.String()))
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrNotFound
	}
	return op, nil
}

func (r *sqliteRepo) List(ctx context.Context, f ListFilter) ([]*entity.Operation, error) {
	q := `SELECT payload FROM operations`
	var (
		conds []string
		args  []any
	)
	if f.From != nil {
		conds = append(conds, `op_date >= ?`)
		args = append(args, f.From.Format(time.RFC3339))
	}
	if f.To != nil {
		conds = append(conds, `op_date <= ?`)
		args = append(args, f.To.Format(time.RFC3339))
	}
	if f.Complete != nil {
		conds = append(conds, `complete = ?`)
		args = append(args, boolToInt(*f.Complete))
	}
	for i, c := range conds {
		if i == 0 {
			q += ` WHERE ` + c
		} else {
			q += ` AND ` + c
		}
	}
	q += ` ORDER BY op_date DESC, op_id DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Operation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		op, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *sqliteRepo) Insert(ctx context.Context, op *entity.Operation) (*entity.Operation, error) {
	stored := *op
	stored.ID = uuid.New()
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	payload, err := encodePayload(&stored)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO operations (id, op_id, op_date, complete, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stored.ID.String(), stored.OpID, stored.Date.Format(time.RFC3339),
		boolToInt(stored.Complete), payload,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		r.logger.Error("repository.insert_failed", "op_id", stored.OpID, "error", err)
		return nil, err
	}
	return &stored, nil
}

func (r *sqliteRepo) Update(ctx context.Context, id uuid.UUID, op *entity.Operation) (*entity.Operation, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	stored := *op
	stored.ID = id
	stored.OpID = existing.OpID // business key is immutable
	stored.CreatedAt = existing.CreatedAt
	stored.UpdatedAt = time.Now().UTC()

	payload, err := encodePayload(&stored)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE operations SET op_date = ?, complete = ?, payload = ?, updated_at = ? WHERE id = ?`,
		stored.Date.Format(time.RFC3339), boolToInt(stored.Complete), payload,
		stored.UpdatedAt.Format(time.RFC3339), id.String())
	if err != nil {
		r.logger.Error("repository.update_failed", "op_id", stored.OpID, "error", err)
		return nil, err
	}
	return &stored, nil
}

func (r *sqliteRepo) SetComplete(ctx context.Context, id uuid.UUID, complete bool) (*entity.Operation, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	existing.Complete = complete
	existing.UpdatedAt = time.Now().UTC()

	payload, err := encodePayload(existing)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE operations SET complete = ?, payload = ?, updated_at = ? WHERE id = ?`,
		boolToInt(complete), payload, existing.UpdatedAt.Format(time.RFC3339), id.String())
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *sqliteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
