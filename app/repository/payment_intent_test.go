package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-client-billing/app/entity"
)

type fakeDB struct {
	execFn func(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if f.execFn != nil {
		return f.execFn(ctx, query, args...)
	}
	return fakeResult{lastInsertID: 1, rowsAffected: 1}, nil
}

func (f *fakeDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

type fakeTxDB struct {
	fakeDB
	beginErr error
}

func (f *fakeTxDB) BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return nil, errors.New("not implemented")
}

type fakeResult struct {
	lastInsertID int64
	rowsAffected int64
	lastErr      error
	rowsErr      error
}

func (r fakeResult) LastInsertId() (int64, error) {
	return r.lastInsertID, r.lastErr
}

func (r fakeResult) RowsAffected() (int64, error) {
	return r.rowsAffected, r.rowsErr
}

func TestIntentCreateAssignsID(t *testing.T) {
	repo := NewPaymentIntentRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{lastInsertID: 77}, nil
	}})

	now := time.Now().UTC()
	intent := &entity.PaymentIntent{
		EnrollmentID: 2,
		TotalCents:   9900,
		Status:       entity.IntentStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), intent); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if intent.ID != 77 {
		t.Fatalf("expected id=77, got %d", intent.ID)
	}
}

func TestSetExternalReferenceNoRows(t *testing.T) {
	repo := NewPaymentIntentRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{rowsAffected: 0}, nil
	}})

	err := repo.SetExternalReference(context.Background(), 5, "payment_5")
	if !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("expected ErrIntentNotFound, got %v", err)
	}
}

func TestUpdateStatusNoRows(t *testing.T) {
	repo := NewPaymentIntentRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{rowsAffected: 0}, nil
	}})

	err := repo.UpdateStatus(context.Background(), 5, entity.IntentStatusPaid)
	if !errors.Is(err, ErrIntentNotFound) {
		t.Fatalf("expected ErrIntentNotFound, got %v", err)
	}
}

func TestMarkOverdueBeforeCount(t *testing.T) {
	repo := NewPaymentIntentRepository(&fakeDB{execFn: func(_ context.Context, _ string, _ ...interface{}) (sql.Result, error) {
		return fakeResult{rowsAffected: 4}, nil
	}})

	count, err := repo.MarkOverdueBefore(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 overdue intents, got %d", count)
	}
}

func TestIsDuplicateEntryError(t *testing.T) {
	if !isDuplicateEntryError(&mysqlDriver.MySQLError{Number: 1062}) {
		t.Fatal("expected true for mysql duplicate error")
	}
	if isDuplicateEntryError(errors.New("boom")) {
		t.Fatal("expected false for generic error")
	}
}

func TestNullableHelpers(t *testing.T) {
	if nullableStringValue(nil) != nil {
		t.Fatal("expected nil for nil string")
	}
	s := "  superseded  "
	if got := nullableStringValue(&s); got != "superseded" {
		t.Fatalf("expected trimmed value, got %#v", got)
	}
	tm := time.Now().UTC()
	if nullableTimeValue(nil) != nil {
		t.Fatal("expected nil for nil time")
	}
	if got := nullableTimeValue(&tm); got == nil {
		t.Fatal("expected non-nil for time value")
	}
}

type fakeIntentScanner struct {
	id                uint64
	enrollmentID      uint64
	totalCents        int64
	installmentCount  int32
	paymentMethod     string
	status            string
	dueDate           sql.NullTime
	cancelReason      sql.NullString
	externalReference string
	absorbsGatewayFee bool
	createdAt         time.Time
	updatedAt         time.Time
	err               error
}

func (f fakeIntentScanner) Scan(dest ...interface{}) error {
	if f.err != nil {
		return f.err
	}
	*(dest[0].(*uint64)) = f.id
	*(dest[1].(*uint64)) = f.enrollmentID
	*(dest[2].(*int64)) = f.totalCents
	*(dest[3].(*int32)) = f.installmentCount
	*(dest[4].(*string)) = f.paymentMethod
	*(dest[5].(*string)) = f.status
	*(dest[6].(*sql.NullTime)) = f.dueDate
	*(dest[7].(*sql.NullString)) = f.cancelReason
	*(dest[8].(*string)) = f.externalReference
	*(dest[9].(*bool)) = f.absorbsGatewayFee
	*(dest[10].(*time.Time)) = f.createdAt
	*(dest[11].(*time.Time)) = f.updatedAt
	return nil
}

func TestScanIntent(t *testing.T) {
	now := time.Now().UTC()
	due := now.Add(48 * time.Hour)

	item := &entity.PaymentIntent{}
	err := scanIntent(fakeIntentScanner{
		id:                9,
		enrollmentID:      2,
		totalCents:        9900,
		installmentCount:  3,
		paymentMethod:     "credit_card",
		status:            "PROCESSING",
		dueDate:           sql.NullTime{Time: due, Valid: true},
		cancelReason:      sql.NullString{},
		externalReference: "payment_9",
		createdAt:         now,
		updatedAt:         now,
	}, item)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if item.ID != 9 || item.Status != entity.IntentStatusProcessing {
		t.Fatalf("unexpected scan result: %+v", item)
	}
	if item.DueDate == nil || item.CancelReason != nil {
		t.Fatalf("unexpected nullable fields: %+v", item)
	}
	if !item.Status.Open() {
		t.Fatal("PROCESSING must count as open")
	}
}
