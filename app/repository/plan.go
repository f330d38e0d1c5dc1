package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
)

type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, name, price_cents, duration_days, seat_limit,
	       is_trial, allow_installments, max_installments,
	       absorbs_gateway_fee, is_active, created_at, updated_at`

func (r *PlanRepository) ListActive(ctx context.Context) ([]*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE is_active = 1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Plan, 0)
	for rows.Next() {
		item := &entity.Plan{}
		if err := scanPlan(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *PlanRepository) FindByID(ctx context.Context, id uint64) (*entity.Plan, error) {
	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE id = ?
	`

	item := &entity.Plan{}
	if err := scanPlan(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func scanPlan(scanner rowScanner, item *entity.Plan) error {
	return scanner.Scan(
		&item.ID,
		&item.Name,
		&item.PriceCents,
		&item.DurationDays,
		&item.SeatLimit,
		&item.IsTrial,
		&item.AllowInstallments,
		&item.MaxInstallments,
		&item.AbsorbsGatewayFee,
		&item.IsActive,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}
