package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/config"
	evstore "github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/handlers"
	"github.com/imrishuroy/go-idempotent-contests/internal/idempotency"
	"github.com/imrishuroy/go-idempotent-contests/internal/leaderboard"
	"github.com/imrishuroy/go-idempotent-contests/internal/metrics"
	"github.com/imrishuroy/go-idempotent-contests/internal/payments"
	"github.com/imrishuroy/go-idempotent-contests/internal/photos"
	"github.com/imrishuroy/go-idempotent-contests/internal/registration"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

func setupRouter(cfg *config.Config, api *handlers.API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AllowCredentials = true
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", idempotency.HeaderKey}
	corsCfg.ExposeHeaders = []string{idempotency.HeaderReplayed}
	r.Use(cors.New(corsCfg))

	api.Register(r)
	return r
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clients, err := aws.NewAWSClients(ctx, cfg.Region, cfg.EndpointOverride)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	m := metrics.New(clients.CloudWatch, cfg.MetricsNamespace)
	publisher := aws.NewPublisher(clients.SQS, cfg.EventsQueueURL)
	objects := aws.NewObjectStore(clients.S3, clients.Presigner, cfg.PhotoBucket)

	eventStore := evstore.NewStore(clients.DynamoDB, cfg.EventsTable)
	userStore := users.NewStore(clients.DynamoDB, cfg.UsersTable)
	photoStore := photos.NewStore(clients.DynamoDB, cfg.PhotosTable, eventStore, userStore)
	paymentStore := payments.NewStore(clients.DynamoDB, cfg.PaymentsTable)
	regStore := registration.NewStore(clients.DynamoDB, eventStore, userStore, paymentStore)
	boardStore := leaderboard.NewStore(clients.DynamoDB, cfg.LeaderboardTable, eventStore, photoStore, userStore)

	idemStore := idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	if err := idemStore.EnsureTTL(ctx); err != nil {
		log.Printf("[api] enabling ttl on %s: %v", cfg.IdempotencyTable, err)
	}

	coordinator := photos.NewCoordinator(eventStore, photoStore, objects, publisher, m, photos.Options{
		UploadURLTTL:    cfg.UploadURLTTL,
		MaxLikesPerUser: cfg.MaxLikesPerUser,
		VerifyUploads:   true,
	})
	gateway := payments.NewRazorpayGateway(cfg.RazorpayAPIURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret, nil)
	ledger := registration.NewLedger(eventStore, regStore, paymentStore, gateway, publisher, registration.Options{
		RegistrationXP: cfg.RegistrationXP,
		PaymentSecret:  cfg.RazorpayKeySecret,
	})

	api := handlers.NewAPI(handlers.Deps{
		Events:        eventStore,
		Photos:        coordinator,
		Registration:  ledger,
		Payments:      paymentStore,
		Webhooks:      payments.NewVerifier(cfg.RazorpayWebhookSecret, paymentStore, m),
		Leaderboard:   boardStore,
		Users:         userStore,
		Publisher:     publisher,
		Idempotency:   idempotency.Middleware(idempotency.NewGate(idemStore), m),
		JWTSecret:     []byte(cfg.JWTSecret),
		RazorpayKeyID: cfg.RazorpayKeyID,
	})

	r := setupRouter(cfg, api)

	if cfg.RunLocal {
		runLocal(cfg.Addr, r)
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// runLocal serves r over plain HTTP until SIGINT or SIGTERM.
func runLocal(addr string, r http.Handler) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("running local server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run local server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
