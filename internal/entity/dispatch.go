package entity

import (
	"time"

	"github.com/google/uuid"
)

// Dispatch represents a dispatch record for data transfer between layers.
// The pipeline reads it during matching and mutates only the payment and
// OCR provenance fields on commit.
type Dispatch struct {
	ID                uuid.UUID  `json:"id"`
	TrackingID        string     `json:"tracking_id"`
	Amount            float64    `json:"amount"`
	PaymentReceived   bool       `json:"payment_received"`
	PaymentReceivedAt *time.Time `json:"payment_received_at,omitempty"`
	PaymentReceivedBy *string    `json:"payment_received_by,omitempty"`
	DeliveryStatus    *string    `json:"delivery_status,omitempty"`
	OCRProcessed      bool       `json:"ocr_processed"`
	CreatedAt         time.Time  `json:"created_at"`
}
