package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/surgidocs/opreport-tracker/internal/entity"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS operations (
	id         UUID PRIMARY KEY,
	op_id      TEXT NOT NULL UNIQUE,
	op_date    TIMESTAMPTZ NOT NULL,
	complete   BOOLEAN NOT NULL DEFAULT FALSE,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

type postgresRepo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository wraps an already-opened database handle (use
// Open to build one from a pgx pool) and ensures the schema.
func NewPostgresRepository(ctx context.Context, db *sql.DB, logger *slog.Logger) (OperationRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, err
	}
	return &postgresRepo{db: db, logger: logger}, nil
}

func (r *postgresRepo) FindByOpID(ctx context.Context, opID string) (*entity.Operation, error) {
	return scanOperation(r.db.QueryRowContext(ctx,
		`SELECT payload FROM operations WHERE op_id = $1`, opID))
}

func (r *postgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Operation, error) {
	op, err := scanOperation(r.db.QueryRowContext(ctx,
		`SELECT payload FROM operations WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrNotFound
	}
	return op, nil
}

func (r *postgresRepo) List(ctx context.Context, f ListFilter) ([]*entity.Operation, error) {
	q := `SELECT payload FROM operations`
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if f.From != nil {
		conds = append(conds, `op_date >= `+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, `op_date <= `+arg(*f.To))
	}
	if f.Complete != nil {
		conds = append(conds, `complete = `+arg(*f.Complete))
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

func (r *postgresRepo) Insert(ctx context.Context, op *entity.Operation) (*entity.Operation, error) {
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
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		stored.ID, stored.OpID, stored.Date, stored.Complete, payload, now, now)
	if err != nil {
		r.logger.Error("repository.insert_failed", "op_id", stored.OpID, "error", err)
		return nil, err
	}
	return &stored, nil
}

func (r *postgresRepo) Update(ctx context.Context, id uuid.UUID, op *entity.Operation) (*entity.Operation, error) {
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
		`UPDATE operations SET op_date = $1, complete = $2, payload = $3, updated_at = $4 WHERE id = $5`,
		stored.Date, stored.Complete, payload, stored.UpdatedAt, id)
	if err != nil {
		r.logger.Error("repository.update_failed", "op_id", stored.OpID, "error", err)
		return nil, err
	}
	return &stored, nil
}

func (r *postgresRepo) SetComplete(ctx context.Context, id uuid.UUID, complete bool) (*entity.Operation, error) {
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
		`UPDATE operations SET complete = $1, payload = $2, updated_at = $3 WHERE id = $4`,
		complete, payload, existing.UpdatedAt, id)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *postgresRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
