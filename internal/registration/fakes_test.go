package registration

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/payments"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

// memDB holds events, users and payments in memory. Each operation runs under one lock, like a
// DynamoDB transaction.
type memDB struct {
	mu       sync.Mutex
	events   map[string]*events.Event
	users    map[string]*users.User
	payments map[string]*payments.Payment
}

func newMemDB() *memDB {
	return &memDB{
		events:   map[string]*events.Event{},
		users:    map[string]*users.User{},
		payments: map[string]*payments.Payment{},
	}
}

func (db *memDB) Get(ctx context.Context, id string) (*events.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	cp := *e
	cp.Participants = append([]string(nil), e.Participants...)
	return &cp, nil
}

func (db *memDB) RegisterDirect(ctx context.Context, eventID, userID string, xp int, now time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.events[eventID]
	if !ok {
		return events.ErrNotFound
	}
	if err := events.CheckDirectRegistration(e, userID, now); err != nil {
		return err
	}
	u, ok := db.users[userID]
	if !ok {
		return users.ErrNotFound
	}
	e.Participants = append(e.Participants, userID)
	addUnique(&u.Events, eventID)
	u.XP += xp
	return nil
}

func (db *memDB) CompletePaid(ctx context.Context, orderID, paymentID, eventID, userID string, xp int, now time.Time) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.payments[orderID]
	if !ok {
		return false, payments.ErrNotFound
	}
	if p.UserID != userID || p.EventID != eventID {
		return false, payments.ErrOrderMismatch
	}
	if p.Status == payments.StatusCompleted {
		if p.PaymentID == paymentID {
			return true, nil
		}
		return false, payments.ErrPaidByOther
	}
	e, ok := db.events[eventID]
	if !ok {
		return false, events.ErrNotFound
	}
	u, ok := db.users[userID]
	if !ok {
		return false, users.ErrNotFound
	}
	for _, joined := range u.Events {
		if joined == eventID {
			return false, users.ErrAlreadyJoined
		}
	}
	p.Status = payments.StatusCompleted
	p.PaymentID = paymentID
	addUnique(&e.Participants, userID)
	addUnique(&u.Events, eventID)
	u.XP += xp
	return false, nil
}

func (db *memDB) Create(ctx context.Context, p payments.Payment) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.payments[p.OrderID]; ok {
		return payments.ErrExists
	}
	db.payments[p.OrderID] = &p
	return nil
}

func (db *memDB) snapshot(eventID, userID string) (participants, userEvents []string, xp int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if e, ok := db.events[eventID]; ok {
		participants = append([]string(nil), e.Participants...)
	}
	if u, ok := db.users[userID]; ok {
		userEvents = append([]string(nil), u.Events...)
		xp = u.XP
	}
	return participants, userEvents, xp
}

func addUnique(set *[]string, v string) {
	for _, s := range *set {
		if s == v {
			return
		}
	}
	*set = append(*set, v)
}

type fakeGateway struct {
	mu     sync.Mutex
	n      int
	err    error
	amount int64
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payments.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.n++
	g.amount = amount
	return &payments.Order{ID: "order_" + string(rune('0'+g.n)), Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []aws.Message
}

func (p *fakePublisher) Publish(ctx context.Context, msg aws.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}
