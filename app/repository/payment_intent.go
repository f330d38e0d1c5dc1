package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
)

type PaymentIntentRepository struct {
	db DBTX
}

func NewPaymentIntentRepository(db DBTX) *PaymentIntentRepository {
	return &PaymentIntentRepository{db: db}
}

const intentColumns = `i.id, i.enrollment_id, i.total_cents, i.installment_count,
	       i.payment_method, i.status, i.due_date, i.cancel_reason,
	       i.external_reference, i.absorbs_gateway_fee, i.created_at, i.updated_at`

func (r *PaymentIntentRepository) Create(ctx context.Context, intent *entity.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			enrollment_id, total_cents, installment_count, payment_method,
			status, due_date, cancel_reason, external_reference,
			absorbs_gateway_fee, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		intent.EnrollmentID,
		intent.TotalCents,
		intent.InstallmentCount,
		intent.PaymentMethod,
		string(intent.Status),
		nullableTimeValue(intent.DueDate),
		nullableStringValue(intent.CancelReason),
		intent.ExternalReference,
		intent.AbsorbsGatewayFee,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	intent.ID = uint64(id)
	return nil
}

func (r *PaymentIntentRepository) FindByID(ctx context.Context, id uint64) (*entity.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents i
		WHERE i.id = ?
	`

	item := &entity.PaymentIntent{}
	if err := scanIntent(r.db.QueryRowContext(ctx, query, id), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

func (r *PaymentIntentRepository) FindByExternalReference(ctx context.Context, externalReference string) (*entity.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents i
		WHERE i.external_reference = ?
		LIMIT 1
	`

	item := &entity.PaymentIntent{}
	if err := scanIntent(r.db.QueryRowContext(ctx, query, externalReference), item); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return item, nil
}

// ListOpenByClient returns the client's PENDING and PROCESSING intents,
// oldest first.
func (r *PaymentIntentRepository) ListOpenByClient(ctx context.Context, clientID string) ([]*entity.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents i
		JOIN enrollments e ON e.id = i.enrollment_id
		WHERE e.client_id = ?
		  AND i.status IN ('PENDING', 'PROCESSING')
		ORDER BY i.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentIntent, 0)
	for rows.Next() {
		item := &entity.PaymentIntent{}
		if err := scanIntent(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// Cancel moves a still-open intent to CANCELLED with a reason. Cancelling
// an intent the gateway already settled is refused.
func (r *PaymentIntentRepository) Cancel(ctx context.Context, id uint64, reason string) error {
	query := `
		UPDATE payment_intents
		SET status = 'CANCELLED', cancel_reason = ?, updated_at = ?
		WHERE id = ?
		  AND status IN ('PENDING', 'PROCESSING')
	`

	result, err := r.db.ExecContext(ctx, query, reason, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return ErrIntentNotFound
		}
		return ErrIntentAlreadyTerminal
	}

	return nil
}

func (r *PaymentIntentRepository) UpdateStatus(ctx context.Context, id uint64, status entity.IntentStatus) error {
	query := `
		UPDATE payment_intents
		SET status = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrIntentNotFound
	}

	return nil
}

// SetExternalReference stores the gateway correlation reference. The
// reference embeds the intent id, so it can only be written after insert.
func (r *PaymentIntentRepository) SetExternalReference(ctx context.Context, id uint64, externalReference string) error {
	query := `
		UPDATE payment_intents
		SET external_reference = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, externalReference, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrIntentNotFound
	}

	return nil
}

func (r *PaymentIntentRepository) GetStatus(ctx context.Context, id uint64) (entity.IntentStatus, error) {
	query := `SELECT status FROM payment_intents WHERE id = ?`

	var raw string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&raw); err == sql.ErrNoRows {
		return "", ErrIntentNotFound
	} else if err != nil {
		return "", err
	}
	return entity.IntentStatus(raw), nil
}

// HasTrialIntentByClient reports whether any of the client's intents,
// terminal or not, references a trial plan.
func (r *PaymentIntentRepository) HasTrialIntentByClient(ctx context.Context, clientID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM payment_intents i
			JOIN enrollments e ON e.id = i.enrollment_id
			JOIN plans pl ON pl.id = e.plan_id
			WHERE e.client_id = ?
			  AND pl.is_trial = 1
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, clientID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkOverdueBefore moves PENDING intents whose due date passed to OVERDUE.
// Returns the number of intents affected.
func (r *PaymentIntentRepository) MarkOverdueBefore(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE payment_intents
		SET status = 'OVERDUE', updated_at = ?
		WHERE status = 'PENDING'
		  AND due_date IS NOT NULL
		  AND due_date < ?
	`

	result, err := r.db.ExecContext(ctx, query, now, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanIntent(scanner rowScanner, item *entity.PaymentIntent) error {
	var status string
	var dueDate sql.NullTime
	var cancelReason sql.NullString

	err := scanner.Scan(
		&item.ID,
		&item.EnrollmentID,
		&item.TotalCents,
		&item.InstallmentCount,
		&item.PaymentMethod,
		&status,
		&dueDate,
		&cancelReason,
		&item.ExternalReference,
		&item.AbsorbsGatewayFee,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return err
	}

	item.Status = entity.IntentStatus(status)
	if dueDate.Valid {
		item.DueDate = &dueDate.Time
	} else {
		item.DueDate = nil
	}
	if cancelReason.Valid {
		item.CancelReason = &cancelReason.String
	} else {
		item.CancelReason = nil
	}

	return nil
}
