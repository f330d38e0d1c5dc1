package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
)

type EnrollmentRepository struct {
	db DBTX
}

func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *entity.Enrollment) error {
	query := `
		INSERT INTO enrollments (client_id, plan_id, created_at)
		VALUES (?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		enrollment.ClientID,
		enrollment.PlanID,
		enrollment.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	enrollment.ID = uint64(id)
	return nil
}

func (r *EnrollmentRepository) FindByID(ctx context.Context, id uint64) (*entity.Enrollment, error) {
	query := `
		SELECT id, client_id, plan_id, created_at
		FROM enrollments
		WHERE id = ?
	`

	item := &entity.Enrollment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.ClientID,
		&item.PlanID,
		&item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *EnrollmentRepository) ListByClient(ctx context.Context, clientID string) ([]*entity.Enrollment, error) {
	query := `
		SELECT id, client_id, plan_id, created_at
		FROM enrollments
		WHERE client_id = ?
		ORDER BY id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Enrollment, 0)
	for rows.Next() {
		item := &entity.Enrollment{}
		if err := rows.Scan(&item.ID, &item.ClientID, &item.PlanID, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
