package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
)

type PeriodRepository struct {
	db TxDB
}

func NewPeriodRepository(db TxDB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = `p.id, p.enrollment_id, p.starts_at, p.expires_at,
	       p.is_current, p.is_trial, p.created_at, p.updated_at`

func (r *PeriodRepository) Create(ctx context.Context, period *entity.Period) error {
	query := `
		INSERT INTO periods (
			enrollment_id, starts_at, expires_at,
			is_current, is_trial, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		period.EnrollmentID,
		period.StartsAt,
		period.ExpiresAt,
		period.IsCurrent,
		period.IsTrial,
		period.CreatedAt,
		period.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	period.ID = uint64(id)
	return nil
}

func (r *PeriodRepository) FindByID(ctx context.Context, id uint64) (*entity.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM periods p
		WHERE p.id = ?
	`

	item := &entity.Period{}
	if err := scanPeriod(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *PeriodRepository) FindCurrentByClient(ctx context.Context, clientID string) (*entity.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM periods p
		JOIN enrollments e ON e.id = p.enrollment_id
		WHERE e.client_id = ?
		  AND p.is_current = 1
		LIMIT 1
	`

	item := &entity.Period{}
	if err := scanPeriod(r.db.QueryRowContext(ctx, query, clientID), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *PeriodRepository) ListReactivatableByClient(ctx context.Context, clientID string, now time.Time) ([]*entity.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM periods p
		JOIN enrollments e ON e.id = p.enrollment_id
		WHERE e.client_id = ?
		  AND p.is_current = 0
		  AND p.expires_at >= ?
		ORDER BY p.starts_at DESC, p.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, clientID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Period, 0)
	for rows.Next() {
		item := &entity.Period{}
		if err := scanPeriod(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *PeriodRepository) HasTrialByClient(ctx context.Context, clientID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM periods p
			JOIN enrollments e ON e.id = p.enrollment_id
			WHERE e.client_id = ?
			  AND p.is_trial = 1
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, clientID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Activate makes the given period the client's current one. Clearing the
// previously current flag and setting the new one happen in a single
// transaction so no read ever observes zero or two current periods.
func (r *PeriodRepository) Activate(ctx context.Context, clientID string, periodID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	clearQuery := `
		UPDATE periods p
		JOIN enrollments e ON e.id = p.enrollment_id
		SET p.is_current = 0, p.updated_at = ?
		WHERE e.client_id = ?
		  AND p.is_current = 1
	`
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, clearQuery, now, clientID); err != nil {
		return err
	}

	setQuery := `
		UPDATE periods p
		JOIN enrollments e ON e.id = p.enrollment_id
		SET p.is_current = 1, p.updated_at = ?
		WHERE p.id = ?
		  AND e.client_id = ?
	`
	result, err := tx.ExecContext(ctx, setQuery, now, periodID, clientID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPeriodNotFound
	}

	return tx.Commit()
}

// ClearCurrentByEnrollment drops the current flag on the enrollment's
// period, if it holds it. Used when a settled payment is refunded.
func (r *PeriodRepository) ClearCurrentByEnrollment(ctx context.Context, enrollmentID uint64) error {
	query := `
		UPDATE periods
		SET is_current = 0, updated_at = ?
		WHERE enrollment_id = ?
		  AND is_current = 1
	`

	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), enrollmentID)
	return err
}

// FindByEnrollment returns the enrollment's period, newest first when the
// enrollment owns more than one.
func (r *PeriodRepository) FindByEnrollment(ctx context.Context, enrollmentID uint64) (*entity.Period, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM periods p
		WHERE p.enrollment_id = ?
		ORDER BY p.id DESC
		LIMIT 1
	`

	item := &entity.Period{}
	if err := scanPeriod(r.db.QueryRowContext(ctx, query, enrollmentID), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

// ExpireCurrentBefore clears the current flag on every period whose
// expiration is behind now. Returns the number of periods expired.
func (r *PeriodRepository) ExpireCurrentBefore(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE periods
		SET is_current = 0, updated_at = ?
		WHERE is_current = 1
		  AND expires_at < ?
	`

	result, err := r.db.ExecContext(ctx, query, now, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanPeriod(scanner rowScanner, item *entity.Period) error {
	return scanner.Scan(
		&item.ID,
		&item.EnrollmentID,
		&item.StartsAt,
		&item.ExpiresAt,
		&item.IsCurrent,
		&item.IsTrial,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}
