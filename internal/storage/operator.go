package storage

import (
	"context"
	"database/sql"
	"fmt"

	"reconciler/internal/model"
)

// CreateOperator inserts an operator; a taken login yields ErrDuplicate.
func (g *Gateway) CreateOperator(ctx context.Context, op *model.Operator) error {
	return g.write(ctx, "create", "operator", op.Login, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO operators (id, login, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
			op.ID, op.Login, op.PasswordHash, op.CreatedAt,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		if err != nil {
			return fmt.Errorf("insert operator: %w", err)
		}
		return nil
	})
}

func (g *Gateway) FindOperator(ctx context.Context, login string) (*model.Operator, error) {
	var op model.Operator
	err := g.db.QueryRowContext(ctx,
		`SELECT id, login, password_hash, created_at FROM operators WHERE login = $1`, login,
	).Scan(&op.ID, &op.Login, &op.PasswordHash, &op.CreatedAt)
	if err != nil {
		return nil, g.read("get", "operator", login, err)
	}
	op.CreatedAt = op.CreatedAt.UTC()
	return &op, nil
}
