package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/common"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
)

// DispatchRepository is the store contract the pipeline consumes: an exact
// lookup for the evaluator and the commit mutation for accepted matches.
type DispatchRepository interface {
	EnsureSchema(ctx context.Context) error
	LookupByTrackingID(ctx context.Context, trackingID string) (*entity.Dispatch, error)
	ApplyMatch(ctx context.Context, dispatchID uuid.UUID, extraction entity.OCRResult) bool
}

type dispatchRepo struct {
	db       *sql.DB
	log      *slog.Logger
	operator string
	breaker  *gobreaker.CircuitBreaker[any]
}

// NewDispatchRepository wraps a store handle. operator is recorded as
// payment_received_by on commits; empty defaults to the OCR identity.
func NewDispatchRepository(db *sql.DB, operator string, log *slog.Logger) DispatchRepository {
	if log == nil {
		log = slog.Default()
	}
	if operator == "" {
		operator = constants.OCRActorIdentity
	}
	return &dispatchRepo{
		db:       db,
		log:      log,
		operator: operator,
		breaker:  newStoreBreaker("dispatch-store", log),
	}
}

// EnsureSchema creates the dispatches table when it is missing, so the
// SQLite fallback works without a migration step. On Postgres the DDL is a
// no-op against the managed schema.
func (r *dispatchRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS dispatches (
	id TEXT PRIMARY KEY,
	tracking_id TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL,
	payment_received BOOLEAN NOT NULL DEFAULT FALSE,
	payment_received_at TIMESTAMPTZ,
	payment_received_by TEXT,
	delivery_status TEXT,
	ocr_processed BOOLEAN NOT NULL DEFAULT FALSE,
	ocr_processed_at TIMESTAMPTZ,
	ocr_confidence DOUBLE PRECISION,
	ocr_raw_data TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_dispatches_tracking_id ON dispatches(tracking_id);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

// LookupByTrackingID returns the dispatch whose tracking_id exactly equals
// the case-normalized input, or (nil, nil) when there is none. Tracking IDs
// are expected near-unique; if the store holds duplicates the oldest row
// wins, which is a known ambiguity rather than intended semantics.
func (r *dispatchRepo) LookupByTrackingID(ctx context.Context, trackingID string) (*entity.Dispatch, error) {
	normalized := strings.ToUpper(strings.TrimSpace(trackingID))
	if normalized == "" {
		return nil, nil
	}

	var d entity.Dispatch
	_, err := r.breaker.Execute(func() (any, error) {
		row := r.db.QueryRowContext(ctx, `
SELECT id, tracking_id, amount, payment_received
FROM dispatches
WHERE UPPER(tracking_id) = $1
ORDER BY created_at
LIMIT 1
`, normalized)
		err := row.Scan(&d.ID, &d.TrackingID, &d.Amount, &d.PaymentReceived)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		r.log.Error("dispatch lookup failed", "tracking_id", normalized, "error", err)
		return nil, common.WrapKind(common.ErrLookup, "lookup dispatch", err)
	}
	if d.ID == uuid.Nil {
		r.log.Debug("no dispatch for tracking id", "tracking_id", normalized)
		return nil, nil
	}
	return &d, nil
}

// ApplyMatch marks the dispatch paid and delivered and stores OCR
// provenance. Reports success as a bool: any store failure, schema-invalid
// snapshot, or unknown dispatch id comes back false, never an error.
func (r *dispatchRepo) ApplyMatch(ctx context.Context, dispatchID uuid.UUID, extraction entity.OCRResult) bool {
	snapshot, err := marshalSnapshot(extraction)
	if err != nil {
		r.log.Error("provenance snapshot rejected", "dispatch_id", dispatchID, "error", err)
		return false
	}

	now := time.Now().UTC()
	_, err = r.breaker.Execute(func() (any, error) {
		res, execErr := r.db.ExecContext(ctx, `
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
`,
			now,
			r.operator,
			string(constants.DeliveryDelivered),
			now,
			extraction.Confidence,
			snapshot,
			dispatchID,
		)
		if execErr != nil {
			return nil, execErr
		}
		n, raErr := res.RowsAffected()
		if raErr != nil {
			return nil, raErr
		}
		if n == 0 {
			return nil, fmt.Errorf("no dispatch with id %s", dispatchID)
		}
		return nil, nil
	})
	if err != nil {
		r.log.Error("apply match failed", "dispatch_id", dispatchID, "error",
			common.WrapKind(common.ErrCommit, "apply match", err))
		return false
	}

	r.log.Info("dispatch updated from OCR match",
		"dispatch_id", dispatchID,
		"operator", r.operator,
		"confidence", extraction.Confidence,
	)
	return true
}
