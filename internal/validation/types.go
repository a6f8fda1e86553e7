package validation

import (
	"time"

	"github.com/imrishuroy/go-idempotent-contests/internal/events"
)

// UploadURLRequest is the payload for POST /photos/upload-url.
type UploadURLRequest struct {
	EventID     string `json:"eventId" validate:"required"`
	ThemeChosen string `json:"themeChosen" validate:"required"`
}

// ConfirmUploadRequest is the payload for POST /photos/confirm.
type ConfirmUploadRequest struct {
	Key         string `json:"key" validate:"required"`
	EventID     string `json:"eventId" validate:"required"`
	UploadedBy  string `json:"uploadedBy" validate:"required"`
	ThemeChosen string `json:"themeChosen" validate:"required"`
}

// CreateOrderRequest is the payload for POST /payments/orders.
type CreateOrderRequest struct {
	EventID string `json:"eventId" validate:"required"`
}

// VerifyPaymentRequest is the payload for POST /payments/verify, as returned by the checkout.
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
	EventID   string `json:"eventId" validate:"required"`
}

type QuestionInput struct {
	Text    string   `json:"text" validate:"required"`
	Options []string `json:"options" validate:"min=2,dive,required"`
	Answer  int      `json:"answer" validate:"gte=0"`
}

// CreateEventRequest is the payload for POST /events. Variant fields are checked against
// EventType by the struct-level rule.
type CreateEventRequest struct {
	EventID      string    `json:"eventId,omitempty"`
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description,omitempty" validate:"max=5000"`
	EventType    string    `json:"eventType" validate:"required,oneof=general quiz photography"`
	StartingDate time.Time `json:"startingDate" validate:"required"`
	EventEndDate time.Time `json:"eventEndDate" validate:"required"`
	EntryFee     int64     `json:"entryFee" validate:"gte=0"`
	Currency     string    `json:"currency,omitempty" validate:"omitempty,len=3,uppercase"`

	// photography
	Themes                  []string   `json:"themes,omitempty" validate:"omitempty,dive,required"`
	MaxPhotos               int        `json:"maxPhotos,omitempty" validate:"gte=0"`
	PhotoSubmissionDeadline *time.Time `json:"photoSubmissionDeadline,omitempty"`

	// quiz
	Questions  []QuestionInput `json:"questions,omitempty" validate:"omitempty,dive"`
	TimeLimit  int             `json:"timeLimit,omitempty" validate:"gte=0"`
	Difficulty string          `json:"difficulty,omitempty" validate:"omitempty,oneof=easy medium hard"`
}

// Event builds the aggregate for a validated request.
func (r CreateEventRequest) Event(id, createdBy string, now time.Time) *events.Event {
	e := &events.Event{Header: events.Header{
		ID:           id,
		Title:        r.Title,
		Description:  r.Description,
		CreatedBy:    createdBy,
		StartingDate: r.StartingDate,
		EndDate:      r.EventEndDate,
		Participants: []string{},
		EntryFee:     r.EntryFee,
		Currency:     r.Currency,
		CreatedAt:    now,
	}}

	switch events.Type(r.EventType) {
	case events.TypePhotography:
		p := events.Photography{Themes: r.Themes, MaxPhotos: r.MaxPhotos, Photos: []string{}}
		if r.PhotoSubmissionDeadline != nil {
			p.SubmissionDeadline = *r.PhotoSubmissionDeadline
		}
		e.Details = p
	case events.TypeQuiz:
		q := events.Quiz{TimeLimit: r.TimeLimit, Difficulty: r.Difficulty}
		for _, in := range r.Questions {
			q.Questions = append(q.Questions, events.Question{Text: in.Text, Options: in.Options, Answer: in.Answer})
		}
		e.Details = q
	default:
		e.Details = events.General{}
	}
	return e
}
