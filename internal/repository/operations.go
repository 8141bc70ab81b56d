// Package repository persists operation records. Each record is stored
// as one JSON document alongside the few columns queries filter on
// (business key, date, completeness flag). Both backends share this
// shape; only dialect details differ.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/surgidocs/opreport-tracker/internal/entity"
)

// ErrNotFound is returned by id-addressed operations when no record
// exists. FindByOpID does not use it; absence is a normal outcome there.
var ErrNotFound = errors.New("operation not found")

// ListFilter narrows List results. Nil/zero fields match everything.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Complete *bool
}

// OperationRepository is the store boundary for operation records.
// FindByOpID returns (nil, nil) when no record exists under the key.
type OperationRepository interface {
	FindByOpID(ctx context.Context, opID string) (*entity.Operation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Operation, error)
	List(ctx context.Context, f ListFilter) ([]*entity.Operation, error)
	Insert(ctx context.Context, op *entity.Operation) (*entity.Operation, error)
	Update(ctx context.Context, id uuid.UUID, op *entity.Operation) (*entity.Operation, error)
	SetComplete(ctx context.Context, id uuid.UUID, complete bool) (*entity.Operation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

func encodePayload(op *entity.Operation) ([]byte, error) {
	data, err := json.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("encode operation: %w", err)
	}
	return data, nil
}

func decodePayload(data []byte) (*entity.Operation, error) {
	var op entity.Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("decode operation: %w", err)
	}
	return &op, nil
}

func scanOperation(row interface{ Scan(...any) error }) (*entity.Operation, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return decodePayload(payload)
}
