package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/leaderboard"
	"github.com/imrishuroy/go-idempotent-contests/internal/payments"
	"github.com/imrishuroy/go-idempotent-contests/internal/photos"
	"github.com/imrishuroy/go-idempotent-contests/internal/registration"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

type fakeEvents struct {
	mu     sync.Mutex
	events map[string]*events.Event
	err    error
}

func (f *fakeEvents) Create(ctx context.Context, e *events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[e.ID]; ok {
		return events.ErrExists
	}
	f.events[e.ID] = e
	return nil
}

func (f *fakeEvents) Get(ctx context.Context, id string) (*events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	return e, nil
}

func (f *fakeEvents) List(ctx context.Context, typ events.Type) ([]*events.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*events.Event
	for _, e := range f.events {
		if typ == "" || e.Type() == typ {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return events.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

// fakePhotos returns err from every call when set.
type fakePhotos struct {
	err       error
	lastTheme string
}

func (f *fakePhotos) RequestGrant(ctx context.Context, eventID, userID, theme string) (*photos.Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastTheme = theme
	key := "photos/" + eventID + "/" + userID + "/1-abcd.jpg"
	return &photos.Grant{UploadURL: "https://bucket/" + key, Key: key, EventID: eventID, UploadedBy: userID, ThemeChosen: theme}, nil
}

func (f *fakePhotos) ConfirmUpload(ctx context.Context, in photos.Confirmation, callerID string) (*photos.Photo, error) {
	if in.UploadedBy != callerID {
		return nil, photos.ErrForeignUpload
	}
	if f.err != nil {
		return nil, f.err
	}
	return &photos.Photo{PhotoID: photos.PhotoID(in.Key), EventID: in.EventID, ImageKey: in.Key, UploadedBy: in.UploadedBy, ThemeChosen: in.ThemeChosen, Likes: []string{}}, nil
}

func (f *fakePhotos) Like(ctx context.Context, photoID, userID string) error   { return f.err }
func (f *fakePhotos) Unlike(ctx context.Context, photoID, userID string) error { return f.err }

func (f *fakePhotos) Get(ctx context.Context, photoID string) (*photos.Photo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &photos.Photo{PhotoID: photoID, Likes: []string{}}, nil
}

func (f *fakePhotos) ListByEvent(ctx context.Context, eventID string) ([]photos.Photo, error) {
	return nil, f.err
}

type fakeRegistration struct {
	mu         sync.Mutex
	registered map[string]bool
	err        error
}

func (f *fakeRegistration) RegisterDirect(ctx context.Context, eventID, userID string) (*registration.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	res := &registration.Result{Status: registration.StatusRegistered, EventID: eventID, UserID: userID}
	if f.registered[eventID+"#"+userID] {
		res.Status = registration.StatusAlreadyRegistered
	}
	f.registered[eventID+"#"+userID] = true
	return res, nil
}

func (f *fakeRegistration) CreateOrder(ctx context.Context, eventID, userID string) (*payments.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Payment{OrderID: "order_1", EventID: eventID, UserID: userID, Amount: 49900, Currency: "INR", Status: payments.StatusPending}, nil
}

func (f *fakeRegistration) VerifyAndRegister(ctx context.Context, orderID, paymentID, signature, eventID, userID string) (*registration.Result, error) {
	if !payments.VerifyPaymentSignature(testPaymentSecret, orderID, paymentID, signature) {
		return nil, payments.ErrInvalidSignature
	}
	return &registration.Result{Status: registration.StatusRegistered, EventID: eventID, UserID: userID, OrderID: orderID}, nil
}

type fakePayments struct{ byOrder map[string]*payments.Payment }

func (f *fakePayments) Get(ctx context.Context, orderID string) (*payments.Payment, error) {
	p, ok := f.byOrder[orderID]
	if !ok {
		return nil, payments.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type failRecorder struct {
	mu     sync.Mutex
	failed []string
}

func (r *failRecorder) MarkFailed(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, orderID)
	return nil
}

type fakeLeaderboard struct{ entries []leaderboard.Entry }

func (f *fakeLeaderboard) ListByEvent(ctx context.Context, eventID string) ([]leaderboard.Entry, error) {
	return f.entries, nil
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*users.User
	err   error
}

func (f *fakeUsers) Ensure(ctx context.Context, userID, name, email string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[userID]
	if !ok {
		u = &users.User{UserID: userID, Events: []string{}, CreatedAt: time.Now()}
		f.users[userID] = u
	}
	return u, nil
}

func (f *fakeUsers) Get(ctx context.Context, userID string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) TopByXP(ctx context.Context, limit int) ([]users.User, error) {
	return []users.User{{UserID: "u9", XP: 550, Events: []string{}}}, nil
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
