// Package registration records user and event associations exactly once, either directly for
// free events or after a verified payment.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/payments"
)

var (
	ErrNoPaymentRequired = apperr.Invalid("no_payment_required", "event is free, register directly")
	ErrConcurrentUpdate  = apperr.Unavailable("concurrent_update", "registration changed concurrently, retry")
)

// Result statuses.
const (
	StatusRegistered        = "registered"
	StatusAlreadyRegistered = "already_registered"
	StatusAlreadyProcessed  = "already_processed"
)

// Result describes a successful registration call. Repeats succeed with a non-fresh status.
type Result struct {
	Status  string `json:"status"`
	EventID string `json:"eventId"`
	UserID  string `json:"userId"`
	OrderID string `json:"orderId,omitempty"`
}

// Fresh reports whether this call performed the registration.
func (r *Result) Fresh() bool { return r.Status == StatusRegistered }

type EventReader interface {
	Get(ctx context.Context, id string) (*events.Event, error)
}

// Repository applies registrations atomically.
type Repository interface {
	RegisterDirect(ctx context.Context, eventID, userID string, xp int, now time.Time) error
	CompletePaid(ctx context.Context, orderID, paymentID, eventID, userID string, xp int, now time.Time) (bool, error)
}

type PaymentRecorder interface {
	Create(ctx context.Context, p payments.Payment) error
}

// Gateway opens provider orders.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payments.Order, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg aws.Message) error
}

// Options tune the Ledger.
type Options struct {
	RegistrationXP  int
	PaymentSecret   string
	DefaultCurrency string
}

// Ledger is the registration entry point for handlers.
type Ledger struct {
	events    EventReader
	repo      Repository
	payments  PaymentRecorder
	gateway   Gateway
	publisher Publisher
	opts      Options
	nowFunc   func() time.Time
}

func NewLedger(ev EventReader, repo Repository, pay PaymentRecorder, gw Gateway, pub Publisher, opts Options) *Ledger {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "INR"
	}
	return &Ledger{
		events:    ev,
		repo:      repo,
		payments:  pay,
		gateway:   gw,
		publisher: pub,
		opts:      opts,
		nowFunc:   time.Now,
	}
}

// RegisterDirect registers userID for a free event. An existing participant gets a
// StatusAlreadyRegistered result, not an error.
func (l *Ledger) RegisterDirect(ctx context.Context, eventID, userID string) (*Result, error) {
	now := l.nowFunc()
	ev, err := l.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	res := &Result{Status: StatusRegistered, EventID: eventID, UserID: userID}
	if err := events.CheckDirectRegistration(ev, userID, now); err != nil {
		if errors.Is(err, events.ErrAlreadyRegistered) {
			res.Status = StatusAlreadyRegistered
			return res, nil
		}
		return nil, err
	}

	err = l.repo.RegisterDirect(ctx, eventID, userID, l.opts.RegistrationXP, now)
	if errors.Is(err, events.ErrAlreadyRegistered) {
		res.Status = StatusAlreadyRegistered
		return res, nil
	}
	if err != nil {
		return nil, err
	}
	l.publish(ctx, res)
	return res, nil
}

// CreateOrder opens a provider order for a paid event and records it as PENDING.
func (l *Ledger) CreateOrder(ctx context.Context, eventID, userID string) (*payments.Payment, error) {
	now := l.nowFunc()
	ev, err := l.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.EntryFee <= 0 {
		return nil, ErrNoPaymentRequired
	}
	if ev.HasParticipant(userID) {
		return nil, events.ErrAlreadyRegistered
	}
	if ev.Ended(now) {
		return nil, events.ErrEnded
	}

	currency := ev.Currency
	if currency == "" {
		currency = l.opts.DefaultCurrency
	}
	order, err := l.gateway.CreateOrder(ctx, ev.EntryFee, currency, receipt(eventID, userID, now))
	if err != nil {
		return nil, err
	}

	p := payments.Payment{
		OrderID:   order.ID,
		UserID:    userID,
		EventID:   eventID,
		Amount:    ev.EntryFee,
		Currency:  currency,
		Receipt:   order.Receipt,
		Status:    payments.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.payments.Create(ctx, p); err != nil {
		return nil, err
	}
	log.Printf("[registration] order=%s opened event=%s user=%s amount=%d", p.OrderID, eventID, userID, p.Amount)
	return &p, nil
}

// receipt is unique per attempt and within the provider's 40 character limit.
func receipt(eventID, userID string, now time.Time) string {
	r := fmt.Sprintf("%d-%s-%s", now.Unix(), eventID, userID)
	if len(r) > 40 {
		r = r[:40]
	}
	return r
}

// VerifyAndRegister checks the checkout signature and then registers the payer.
func (l *Ledger) VerifyAndRegister(ctx context.Context, orderID, paymentID, signature, eventID, userID string) (*Result, error) {
	if !payments.VerifyPaymentSignature(l.opts.PaymentSecret, orderID, paymentID, signature) {
		log.Printf("[registration] signature mismatch order=%s payment=%s", orderID, paymentID)
		return nil, payments.ErrInvalidSignature
	}
	return l.RegisterAfterPayment(ctx, orderID, paymentID, eventID, userID)
}

// RegisterAfterPayment completes the order and registers userID. Calling it again with the
// same order and payment returns StatusAlreadyProcessed.
func (l *Ledger) RegisterAfterPayment(ctx context.Context, orderID, paymentID, eventID, userID string) (*Result, error) {
	res := &Result{Status: StatusRegistered, EventID: eventID, UserID: userID, OrderID: orderID}
	processed, err := l.repo.CompletePaid(ctx, orderID, paymentID, eventID, userID, l.opts.RegistrationXP, l.nowFunc())
	if err != nil {
		return nil, err
	}
	if processed {
		res.Status = StatusAlreadyProcessed
		return res, nil
	}
	l.publish(ctx, res)
	return res, nil
}

func (l *Ledger) publish(ctx context.Context, res *Result) {
	err := l.publisher.Publish(ctx, aws.Message{
		Type:    aws.MessageRegistrationCompleted,
		EventID: res.EventID,
		UserID:  res.UserID,
		OrderID: res.OrderID,
	})
	if err != nil {
		log.Printf("[registration] publish event=%s user=%s: %v", res.EventID, res.UserID, err)
	}
}
