package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/belagenda/belagenda/internal/model"
	"github.com/belagenda/belagenda/libs/db"
)

var (
	// ErrDuplicateProcedure is returned when the catalog already has a
	// procedure with that name.
	ErrDuplicateProcedure = errors.New("procedure name already exists")

	// ErrProcedureNotFound is returned when the procedure id does not resolve.
	ErrProcedureNotFound = errors.New("procedure not found")
)

// ProcedureRepository is the named-entity catalog. Appointments reference
// procedures by name only, so deletes never cascade.
type ProcedureRepository struct {
	pool *db.Pool
}

func NewProcedureRepository(pool *db.Pool) *ProcedureRepository {
	return &ProcedureRepository{pool: pool}
}

func (r *ProcedureRepository) Create(ctx context.Context, name string) (model.Procedure, error) {
	p := model.Procedure{
		ID:   uuid.NewString(),
		Name: name,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO procedures (id, name)
		VALUES ($1, $2)
		RETURNING created_at
	`, p.ID, p.Name).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Procedure{}, ErrDuplicateProcedure
		}
		return model.Procedure{}, fmt.Errorf("insert procedure: %w", err)
	}
	return p, nil
}

func (r *ProcedureRepository) List(ctx context.Context) ([]model.Procedure, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM procedures
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}
	defer rows.Close()

	var procedures []model.Procedure
	for rows.Next() {
		var p model.Procedure
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		procedures = append(procedures, p)
	}
	return procedures, rows.Err()
}

func (r *ProcedureRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrProcedureNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM procedures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete procedure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProcedureNotFound
	}
	return nil
}
