package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
)

// Expressions are shared with the in-memory mock used in tests.
const (
	createCondition     = "attribute_not_exists(idempotency_key) OR expires_at <= :now OR #s = :failed"
	pendingCondition    = "#s = :pending"
	markCompletedUpdate = "SET #s = :completed, response_body = :rb, response_status = :rs, updated_at = :ua"
	markFailedUpdate    = "SET #s = :failed, note = :n, updated_at = :ua"
	ttlAttribute        = "expires_at"
)

// ErrConditionFailed indicates a conditional write failed, e.g. a transition out of a
// non-Pending state.
var ErrConditionFailed = errors.New("conditional check failed")

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow: lifetime of a record from creation (1h in production).
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// HashBody returns the hex sha256 of a request body.
func HashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// NewPending builds a Pending record for key stamped with the store clock.
func (s *Store) NewPending(key, method, path string, body []byte) Record {
	now := s.nowFunc()
	return Record{
		IdempotencyKey: key,
		Status:         StatusPending,
		Method:         method,
		Path:           path,
		RequestBody:    body,
		RequestHash:    HashBody(body),
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}
}

// CreateIfNotExists writes rec when no live record holds the key. An expired record, or one that
// ended Failed, is replaced in the same conditional write.
// Returns (true, nil) when created, (false, nil) when a live record already exists.
func (s *Store) CreateIfNotExists(ctx context.Context, rec Record) (bool, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	input := &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String(createCondition),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":    aws.N(s.nowFunc().Unix()),
			":failed": aws.S(StatusFailed),
		},
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		if aws.IsConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves a live record by key. Missing and expired records both return (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	input := &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            aws.Key("idempotency_key", key),
		ConsistentRead: sdkBool(true),
	}
	out, err := s.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	if rec.Expired(s.nowFunc()) {
		return nil, nil
	}
	return &rec, nil
}

// MarkCompleted moves a Pending record to Completed with the response to replay.
// Returns ErrConditionFailed if the record is not Pending.
func (s *Store) MarkCompleted(ctx context.Context, key string, responseBody []byte, responseStatus int) error {
	if responseBody == nil {
		responseBody = []byte{}
	}
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 aws.Key("idempotency_key", key),
		UpdateExpression:    aws.String(markCompletedUpdate),
		ConditionExpression: aws.String(pendingCondition),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending":   aws.S(StatusPending),
			":completed": aws.S(StatusCompleted),
			":rb":        &types.AttributeValueMemberB{Value: responseBody},
			":rs":        &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
			":ua":        aws.S(s.nowFunc().Format(time.RFC3339Nano)),
		},
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if aws.IsConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update item (mark completed): %w", err)
	}
	return nil
}

// MarkFailed moves a Pending record to Failed and stores a note.
// Returns ErrConditionFailed if the record is not Pending.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 aws.Key("idempotency_key", key),
		UpdateExpression:    aws.String(markFailedUpdate),
		ConditionExpression: aws.String(pendingCondition),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": aws.S(StatusPending),
			":failed":  aws.S(StatusFailed),
			":n":       aws.S(note),
			":ua":      aws.S(s.nowFunc().Format(time.RFC3339Nano)),
		},
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		if aws.IsConditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

// EnsureTTL enables DynamoDB TTL on expires_at. Already-enabled tables report a
// ValidationException which is ignored.
func (s *Store) EnsureTTL(ctx context.Context) error {
	_, err := s.client.UpdateTimeToLive(ctx, &dyn.UpdateTimeToLiveInput{
		TableName: &s.tableName,
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(ttlAttribute),
			Enabled:       sdkBool(true),
		},
	})
	if err != nil {
		if aws.IsValidation(err) {
			return nil
		}
		return fmt.Errorf("update ttl: %w", err)
	}
	return nil
}

func sdkBool(b bool) *bool { return &b }
