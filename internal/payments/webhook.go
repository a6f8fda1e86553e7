package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/imrishuroy/go-idempotent-contests/internal/metrics"
)

// Webhook event names the Verifier acts on.
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentFailed     = "payment.failed"
)

// Webhook is the provider callback body.
type Webhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity is the payment object carried by payment.* webhooks.
type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Ack is the acknowledgement returned for every correctly signed webhook.
type Ack struct {
	Status string `json:"status"`
}

// FailureRecorder marks a payment order failed.
type FailureRecorder interface {
	MarkFailed(ctx context.Context, orderID string) error
}

// Verifier authenticates webhooks and applies them to payment records.
type Verifier struct {
	secret   string
	payments FailureRecorder
	metrics  metrics.Emitter
}

func NewVerifier(secret string, payments FailureRecorder, m metrics.Emitter) *Verifier {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Verifier{secret: secret, payments: payments, metrics: m}
}

// Handle verifies signature over rawBody and dispatches on the event name. A bad signature
// returns ErrInvalidSignature and changes nothing. Once the signature is valid the webhook is
// always acknowledged, so business misses never trigger provider retries.
func (v *Verifier) Handle(ctx context.Context, rawBody []byte, signature string) (*Ack, error) {
	if !VerifyWebhookSignature(v.secret, rawBody, signature) {
		v.metrics.Count(ctx, metrics.WebhookRejected, nil)
		log.Printf("[webhook] rejected: signature mismatch")
		return nil, ErrInvalidSignature
	}

	ack := &Ack{Status: "ok"}
	var wh Webhook
	if err := json.Unmarshal(rawBody, &wh); err != nil {
		log.Printf("[webhook] undecodable body acknowledged: %v", err)
		return ack, nil
	}

	switch wh.Event {
	case EventPaymentFailed:
		v.markFailed(ctx, wh.Payload.Payment.Entity)
	case EventPaymentAuthorized:
		// registration happens on the synchronous verify path
	default:
		log.Printf("[webhook] ignoring event %q", wh.Event)
	}
	return ack, nil
}

func (v *Verifier) markFailed(ctx context.Context, p PaymentEntity) {
	if p.OrderID == "" {
		log.Printf("[webhook] payment.failed without order id payment=%s", p.ID)
		return
	}
	err := v.payments.MarkFailed(ctx, p.OrderID)
	switch {
	case err == nil:
		log.Printf("[webhook] order=%s marked failed payment=%s", p.OrderID, p.ID)
	case errors.Is(err, ErrStatusMismatch):
		log.Printf("[webhook] order=%s missing or completed, failure ignored", p.OrderID)
	default:
		log.Printf("[webhook] mark failed order=%s: %v", p.OrderID, err)
	}
}
