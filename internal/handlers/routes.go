package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-idempotent-contests/internal/auth"
	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/leaderboard"
	"github.com/imrishuroy/go-idempotent-contests/internal/payments"
	"github.com/imrishuroy/go-idempotent-contests/internal/photos"
	"github.com/imrishuroy/go-idempotent-contests/internal/registration"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
	"github.com/imrishuroy/go-idempotent-contests/internal/validation"
)

type EventService interface {
	Create(ctx context.Context, e *events.Event) error
	Get(ctx context.Context, id string) (*events.Event, error)
	List(ctx context.Context, typ events.Type) ([]*events.Event, error)
	Delete(ctx context.Context, id string) error
}

type PhotoService interface {
	RequestGrant(ctx context.Context, eventID, userID, theme string) (*photos.Grant, error)
	ConfirmUpload(ctx context.Context, in photos.Confirmation, callerID string) (*photos.Photo, error)
	Like(ctx context.Context, photoID, userID string) error
	Unlike(ctx context.Context, photoID, userID string) error
	Get(ctx context.Context, photoID string) (*photos.Photo, error)
	ListByEvent(ctx context.Context, eventID string) ([]photos.Photo, error)
}

type RegistrationService interface {
	RegisterDirect(ctx context.Context, eventID, userID string) (*registration.Result, error)
	CreateOrder(ctx context.Context, eventID, userID string) (*payments.Payment, error)
	VerifyAndRegister(ctx context.Context, orderID, paymentID, signature, eventID, userID string) (*registration.Result, error)
}

type PaymentReader interface {
	Get(ctx context.Context, orderID string) (*payments.Payment, error)
}

type WebhookService interface {
	Handle(ctx context.Context, rawBody []byte, signature string) (*payments.Ack, error)
}

type LeaderboardReader interface {
	ListByEvent(ctx context.Context, eventID string) ([]leaderboard.Entry, error)
}

type UserService interface {
	Ensure(ctx context.Context, userID, name, email string) (*users.User, error)
	Get(ctx context.Context, userID string) (*users.User, error)
	TopByXP(ctx context.Context, limit int) ([]users.User, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg aws.Message) error
}

// Deps groups what the routes need.
type Deps struct {
	Events       EventService
	Photos       PhotoService
	Registration RegistrationService
	Payments     PaymentReader
	Webhooks     WebhookService
	Leaderboard  LeaderboardReader
	Users        UserService
	Publisher    Publisher

	// Idempotency guards every mutating route that creates state.
	Idempotency gin.HandlerFunc
	JWTSecret   []byte
	// RazorpayKeyID is handed to clients to open the checkout.
	RazorpayKeyID string
}

// API holds the handlers.
type API struct {
	Deps
	validate *validatorv10.Validate
	nowFunc  func() time.Time
}

func NewAPI(d Deps) *API {
	if d.Idempotency == nil {
		d.Idempotency = func(c *gin.Context) { c.Next() }
	}
	return &API{Deps: d, validate: validation.New(), nowFunc: time.Now}
}

// Register mounts all routes on r.
func (a *API) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/events", a.listEvents)
	r.GET("/events/:id", a.getEvent)
	r.GET("/events/:id/photos", a.listEventPhotos)
	r.GET("/photos/:id", a.getPhoto)
	r.GET("/leaderboard", a.topUsers)
	r.GET("/leaderboard/:eventId", a.eventLeaderboard)

	// signed by the provider, not the user
	r.POST("/payments/webhook", a.webhook)

	authed := r.Group("", auth.Middleware(a.JWTSecret), a.ensureUser)
	authed.GET("/me", a.me)
	authed.GET("/payments/orders/:id", a.getOrder)
	authed.DELETE("/photos/:id/like", a.unlikePhoto)

	guarded := authed.Group("", a.Idempotency)
	guarded.POST("/photos/upload-url", a.uploadURL)
	guarded.POST("/photos/confirm", a.confirmUpload)
	guarded.POST("/photos/:id/like", a.likePhoto)
	guarded.POST("/events/:id/register", a.register)
	guarded.POST("/payments/orders", a.createOrder)
	guarded.POST("/payments/verify", a.verifyPayment)

	admin := authed.Group("", auth.RequireAdmin())
	admin.POST("/events", a.Idempotency, a.createEvent)
	admin.DELETE("/events/:id", a.deleteEvent)
	admin.POST("/events/:id/close", a.closeEvent)
}

// ensureUser creates the caller's profile on first sight so transactions can rely on it.
func (a *API) ensureUser(c *gin.Context) {
	if _, err := a.Users.Ensure(c.Request.Context(), auth.UserID(c), "", ""); err != nil {
		writeError(c, err)
		c.Abort()
		return
	}
	c.Next()
}
