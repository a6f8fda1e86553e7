package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
)

const (
	createCondition = "attribute_not_exists(order_id)"

	// FAILED may be reported any number of times until the order completes.
	markFailedCondition = "attribute_exists(order_id) AND #s <> :completed"
	markFailedUpdate    = "SET #s = :failed, updated_at = :ua, attempts = if_not_exists(attempts, :zero) + :inc"

	completeCondition = "attribute_exists(order_id) AND user_id = :uid AND event_id = :eid AND #s <> :completed"
	completeUpdate    = "SET #s = :completed, payment_id = :pid, updated_at = :ua"
)

var statusName = map[string]string{"#s": "status"}

// Store encapsulates operations on the payments table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new payments Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create stores a new payment record. Status defaults to PENDING.
func (s *Store) Create(ctx context.Context, p Payment) error {
	now := s.nowFunc()
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal payment: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String(createCondition),
	})
	if err != nil {
		if aws.IsConditionFailed(err) {
			return ErrExists
		}
		return fmt.Errorf("put payment: %w", err)
	}
	return nil
}

// Get fetches a payment by order id.
func (s *Store) Get(ctx context.Context, orderID string) (*Payment, error) {
	consistent := true
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            aws.Key("order_id", orderID),
		ConsistentRead: &consistent,
	})
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal payment: %w", err)
	}
	return &p, nil
}

// MarkFailed records a failed payment attempt. Repeats are harmless; a completed payment is
// left untouched and reported as ErrStatusMismatch, as is a missing one.
func (s *Store) MarkFailed(ctx context.Context, orderID string) error {
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      aws.Key("order_id", orderID),
		UpdateExpression:         aws.String(markFailedUpdate),
		ConditionExpression:      aws.String(markFailedCondition),
		ExpressionAttributeNames: statusName,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":    aws.S(StatusFailed),
			":completed": aws.S(StatusCompleted),
			":ua":        aws.S(s.nowFunc().Format(time.RFC3339)),
			":zero":      aws.N(0),
			":inc":       aws.N(1),
		},
	})
	if err != nil {
		if aws.IsConditionFailed(err) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// CompleteItem builds the transaction item that completes the order with paymentID. It fails
// unless the order belongs to userID and eventID and is not yet completed.
func (s *Store) CompleteItem(orderID, paymentID, userID, eventID string, now time.Time) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                &s.tableName,
		Key:                      aws.Key("order_id", orderID),
		UpdateExpression:         aws.String(completeUpdate),
		ConditionExpression:      aws.String(completeCondition),
		ExpressionAttributeNames: statusName,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": aws.S(StatusCompleted),
			":pid":       aws.S(paymentID),
			":uid":       aws.S(userID),
			":eid":       aws.S(eventID),
			":ua":        aws.S(now.Format(time.RFC3339)),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// CompletionRejection classifies a failed CompleteItem condition from the old image.
// processed is true when the order was already completed by the same payment.
func CompletionRejection(old map[string]types.AttributeValue, paymentID, userID, eventID string) (processed bool, err error) {
	if len(old) == 0 {
		return false, ErrNotFound
	}
	var p Payment
	if err := attributevalue.UnmarshalMap(old, &p); err != nil {
		return false, fmt.Errorf("unmarshal payment: %w", err)
	}
	if p.UserID != userID || p.EventID != eventID {
		return false, ErrOrderMismatch
	}
	if p.Status == StatusCompleted {
		if p.PaymentID == paymentID {
			return true, nil
		}
		return false, ErrPaidByOther
	}
	return false, nil
}
