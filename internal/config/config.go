package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Region           string
	EndpointOverride string

	IdempotencyTable string `validate:"required"`
	EventsTable      string `validate:"required"`
	PhotosTable      string `validate:"required"`
	UsersTable       string `validate:"required"`
	PaymentsTable    string `validate:"required"`
	LeaderboardTable string `validate:"required"`
	PhotoBucket      string `validate:"required"`
	EventsQueueURL   string `validate:"required"`

	RazorpayKeyID         string
	RazorpayKeySecret     string `validate:"required"`
	RazorpayWebhookSecret string `validate:"required"`
	RazorpayAPIURL        string `validate:"required,url"`

	JWTSecret string `validate:"required"`

	MetricsNamespace string

	IdempotencyTTL  time.Duration `validate:"gt=0"`
	UploadURLTTL    time.Duration `validate:"gt=0"`
	RegistrationXP  int           `validate:"gte=0"`
	WinnerXP        int           `validate:"gte=0"`
	MaxLikesPerUser int           `validate:"gt=0"`

	RunLocal    bool
	Addr        string
	CORSOrigins []string
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] ignoring .env: %v", err)
	}

	cfg := &Config{
		Region:           os.Getenv("AWS_REGION"),
		EndpointOverride: os.Getenv("AWS_ENDPOINT_OVERRIDE"),

		IdempotencyTable: os.Getenv("IDEMPOTENCY_TABLE"),
		EventsTable:      os.Getenv("EVENTS_TABLE"),
		PhotosTable:      os.Getenv("PHOTOS_TABLE"),
		UsersTable:       os.Getenv("USERS_TABLE"),
		PaymentsTable:    os.Getenv("PAYMENTS_TABLE"),
		LeaderboardTable: os.Getenv("LEADERBOARD_TABLE"),
		PhotoBucket:      os.Getenv("PHOTO_BUCKET"),
		EventsQueueURL:   os.Getenv("EVENTS_QUEUE_URL"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayAPIURL:        getenv("RAZORPAY_API_URL", "https://api.razorpay.com/v1"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		MetricsNamespace: os.Getenv("METRICS_NAMESPACE"),

		RunLocal: os.Getenv("RUN_LOCAL") == "true",
		Addr:     getenv("ADDR", ":8080"),
	}

	var err error
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.UploadURLTTL, err = durationEnv("UPLOAD_URL_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.RegistrationXP, err = intEnv("REGISTRATION_XP", 50); err != nil {
		return nil, err
	}
	if cfg.WinnerXP, err = intEnv("WINNER_XP", 500); err != nil {
		return nil, err
	}
	if cfg.MaxLikesPerUser, err = intEnv("MAX_LIKES_PER_USER", 10); err != nil {
		return nil, err
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if err := validatorv10.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
