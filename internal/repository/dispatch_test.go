package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/medidispatch/dispatch-ocr/internal/common"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
)

const lookupQuery = `
SELECT id, tracking_id, amount, payment_received
FROM dispatches
WHERE UPPER(tracking_id) = $1
ORDER BY created_at
LIMIT 1
`

const applyQuery = `
UPDATE dispatches
SET payment_received = TRUE,
    payment_received_at = $1,
    payment_received_by = $2,
    delivery_status = $3,
    ocr_processed = TRUE,
    ocr_processed_at = $4,
    ocr_confidence = $5,
    ocr_raw_data = $6
WHERE id = $7
`

func newMockRepo(t *testing.T) (DispatchRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDispatchRepository(db, "", nil), mock
}

func sampleExtraction() entity.OCRResult {
	tid := "EZ548KQ"
	amt := 500.0
	return entity.OCRResult{TrackingID: &tid, Amount: &amt, Confidence: 92.5, RawText: "raw"}
}

func TestLookupByTrackingIDFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(lookupQuery)).
		WithArgs("EZ548KQ").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tracking_id", "amount", "payment_received"}).
			AddRow(id.String(), "EZ548KQ", 500.0, false))

	d, err := repo.LookupByTrackingID(context.Background(), "  ez548kq ")
	if err != nil {
		t.Fatalf("LookupByTrackingID: %v", err)
	}
	if d == nil {
		t.Fatal("dispatch is nil, want a row")
	}
	if d.ID != id || d.TrackingID != "EZ548KQ" || d.Amount != 500.0 || d.PaymentReceived {
		t.Errorf("dispatch = %+v", d)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLookupByTrackingIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(lookupQuery)).
		WithArgs("EZ404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tracking_id", "amount", "payment_received"}))

	d, err := repo.LookupByTrackingID(context.Background(), "EZ404")
	if err != nil {
		t.Fatalf("LookupByTrackingID: %v", err)
	}
	if d != nil {
		t.Errorf("dispatch = %+v, want nil", d)
	}
}

func TestLookupByTrackingIDEmptyInput(t *testing.T) {
	repo, mock := newMockRepo(t)

	d, err := repo.LookupByTrackingID(context.Background(), "   ")
	if err != nil || d != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", d, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLookupByTrackingIDQueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(lookupQuery)).
		WithArgs("EZ1").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.LookupByTrackingID(context.Background(), "EZ1")
	if !errors.Is(err, common.ErrLookup) {
		t.Errorf("err = %v, want ErrLookup kind", err)
	}
}

func TestApplyMatchSuccess(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(applyQuery)).
		WithArgs(sqlmock.AnyArg(), "ocr_auto", "Delivered", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if !repo.ApplyMatch(context.Background(), id, sampleExtraction()) {
		t.Error("ApplyMatch = false, want true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestApplyMatchUnknownDispatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(applyQuery)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if repo.ApplyMatch(context.Background(), id, sampleExtraction()) {
		t.Error("ApplyMatch = true for unknown dispatch, want false")
	}
}

func TestApplyMatchExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(applyQuery)).
		WillReturnError(errors.New("deadlock"))

	if repo.ApplyMatch(context.Background(), uuid.New(), sampleExtraction()) {
		t.Error("ApplyMatch = true on exec error, want false")
	}
}

func TestApplyMatchRejectsMalformedSnapshot(t *testing.T) {
	repo, mock := newMockRepo(t)

	bad := sampleExtraction()
	tid := "BAD!"
	bad.TrackingID = &tid

	if repo.ApplyMatch(context.Background(), uuid.New(), bad) {
		t.Error("ApplyMatch = true for schema-invalid snapshot, want false")
	}
	// no store round trip for an invalid snapshot
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
