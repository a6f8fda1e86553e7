package payments

import (
	"time"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
)

// Payment statuses. COMPLETED is terminal.
const (
	StatusPending   = "PENDING"
	StatusFailed    = "FAILED"
	StatusCompleted = "COMPLETED"
)

var (
	ErrNotFound         = apperr.NotFound("payment_not_found", "payment order not found")
	ErrExists           = apperr.Conflict("payment_exists", "payment order already exists")
	ErrStatusMismatch   = apperr.Conflict("payment_status_mismatch", "payment status does not allow this transition")
	ErrOrderMismatch    = apperr.Invalid("order_mismatch", "order does not belong to this user and event")
	ErrPaidByOther      = apperr.Conflict("order_already_paid", "order was completed by a different payment")
	ErrInvalidSignature = apperr.Invalid("invalid_signature", "signature verification failed")
	ErrConcurrentUpdate = apperr.Unavailable("concurrent_update", "payment changed concurrently, retry")
)

// Payment is the item stored in the payments table, keyed by the provider order id.
type Payment struct {
	OrderID   string    `dynamodbav:"order_id" json:"orderId"`
	PaymentID string    `dynamodbav:"payment_id,omitempty" json:"paymentId,omitempty"`
	UserID    string    `dynamodbav:"user_id" json:"userId"`
	EventID   string    `dynamodbav:"event_id" json:"eventId"`
	Amount    int64     `dynamodbav:"amount" json:"amount"` // minor units
	Currency  string    `dynamodbav:"currency" json:"currency"`
	Receipt   string    `dynamodbav:"receipt,omitempty" json:"receipt,omitempty"`
	Status    string    `dynamodbav:"status" json:"status"`
	Attempts  int       `dynamodbav:"attempts,omitempty" json:"attempts,omitempty"` // failed attempts reported by the provider
	CreatedAt time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}
