package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/config"
	evstore "github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/leaderboard"
	"github.com/imrishuroy/go-idempotent-contests/internal/photos"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

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

	eventStore := evstore.NewStore(clients.DynamoDB, cfg.EventsTable)
	userStore := users.NewStore(clients.DynamoDB, cfg.UsersTable)
	photoStore := photos.NewStore(clients.DynamoDB, cfg.PhotosTable, eventStore, userStore)
	boardStore := leaderboard.NewStore(clients.DynamoDB, cfg.LeaderboardTable, eventStore, photoStore, userStore)

	p := NewProcessor(leaderboard.NewDeterminer(eventStore, photoStore, boardStore, cfg.WinnerXP))

	// RUN_LOCAL=true feeds a single message from LOCAL_SQS_BODY through the processor.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			log.Fatalf("LOCAL_SQS_BODY is required when RUN_LOCAL=true")
		}
		resp, err := p.Handle(ctx, events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		})
		if err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		if len(resp.BatchItemFailures) > 0 {
			log.Fatalf("local message failed")
		}
		return
	}

	lambda.Start(p.Handle)
}
