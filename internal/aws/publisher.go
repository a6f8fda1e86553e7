package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Message types carried on the events queue.
const (
	MessagePhotoConfirmed        = "photo.confirmed"
	MessageRegistrationCompleted = "registration.completed"
	MessageEventClosed           = "event.closed"
)

// Message is the payload sent from API -> SQS -> Worker.
type Message struct {
	Type          string `json:"type"`
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id,omitempty"`
	PhotoID       string `json:"photo_id,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Publisher wraps an SQS client and a queue URL.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher bound to a queue URL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{
		SQS:      sqsClient,
		QueueURL: queueURL,
	}
}

// Publish sends msg as a JSON body. The type and event id are mirrored into message attributes
// so queue subscriptions can filter without decoding the body.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	attrs := map[string]string{
		"type":     msg.Type,
		"event_id": msg.EventID,
	}
	if msg.CorrelationID != "" {
		attrs["correlation_id"] = msg.CorrelationID
	}
	return p.send(ctx, string(body), attrs)
}

func (p *Publisher) send(ctx context.Context, messageBody string, attributes map[string]string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: &messageBody,
	}
	if len(attributes) > 0 {
		msgAttrs := map[string]sqstypes.MessageAttributeValue{}
		for k, v := range attributes {
			if v == "" {
				continue
			}
			// using string type for all attrs
			msgAttrs[k] = sqstypes.MessageAttributeValue{
				DataType:    String("String"),
				StringValue: String(v),
			}
		}
		input.MessageAttributes = msgAttrs
	}

	_, err := p.SQS.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// String returns a pointer to s.
func String(s string) *string { return &s }
