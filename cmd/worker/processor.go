package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	evstore "github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/leaderboard"
)

// WinnerDeterminer decides the winner of a closed event.
type WinnerDeterminer interface {
	DetermineWinner(ctx context.Context, eventID string) (*leaderboard.Outcome, error)
}

// Processor handles messages from the events queue.
type Processor struct {
	determiner WinnerDeterminer
}

func NewProcessor(d WinnerDeterminer) *Processor {
	return &Processor{determiner: d}
}

// Handle processes an SQS batch. Only messages that failed with a retryable error are reported
// back, so the rest of the batch is not redelivered.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.Printf("[worker] message=%s failed: %v", rec.MessageId, err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg aws.Message
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		// Redelivery cannot fix a malformed body; it ends in the DLQ after maxReceiveCount.
		return fmt.Errorf("invalid message body: %w", err)
	}

	log.Printf("[worker] received type=%s event=%s corr=%s", msg.Type, msg.EventID, msg.CorrelationID)

	switch msg.Type {
	case aws.MessageEventClosed:
		return p.closeEvent(ctx, msg)
	case aws.MessagePhotoConfirmed, aws.MessageRegistrationCompleted:
		log.Printf("[worker] %s event=%s user=%s noted", msg.Type, msg.EventID, msg.UserID)
		return nil
	default:
		log.Printf("[worker] ignoring unknown message type=%q", msg.Type)
		return nil
	}
}

func (p *Processor) closeEvent(ctx context.Context, msg aws.Message) error {
	if msg.EventID == "" {
		log.Printf("[worker] %s without event id dropped", msg.Type)
		return nil
	}

	out, err := p.determiner.DetermineWinner(ctx, msg.EventID)
	switch {
	case err == nil:
		log.Printf("[worker] event=%s status=%s photo=%s user=%s", out.EventID, out.Status, out.PhotoID, out.UserID)
		return nil
	case errors.Is(err, evstore.ErrNotEnded):
		// Closed early; the retry picks it up once the end time passes.
		return err
	case apperr.KindOf(err) == apperr.KindUnavailable:
		return err
	case apperr.KindOf(err) != apperr.KindInternal:
		log.Printf("[worker] event=%s dropped: %v", msg.EventID, err)
		return nil
	default:
		return fmt.Errorf("determine winner event=%s: %w", msg.EventID, err)
	}
}
