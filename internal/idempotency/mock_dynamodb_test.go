package idempotency

import (
	"context"
	"errors"
	"strconv"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// simpleMock is a small in-memory table that understands the store's condition expressions.
type simpleMock struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue

	putCalls    int
	getCalls    int
	updateCalls int
	ttlCalls    int

	// injected failures
	putErr error
	getErr error
	ttlErr error
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func num(av types.AttributeValue) int64 {
	if n, ok := av.(*types.AttributeValueMemberN); ok {
		v, _ := strconv.ParseInt(n.Value, 10, 64)
		return v
	}
	return 0
}

func (m *simpleMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	k := str(params.Item["idempotency_key"])
	if k == "" {
		return nil, errors.New("missing key")
	}

	if params.ConditionExpression != nil && *params.ConditionExpression == createCondition {
		if cur, ok := m.table[k]; ok {
			now := num(params.ExpressionAttributeValues[":now"])
			expired := num(cur["expires_at"]) <= now
			failed := str(cur["status"]) == str(params.ExpressionAttributeValues[":failed"])
			if !expired && !failed {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	item, ok := m.table[str(params.Key["idempotency_key"])]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	k := str(params.Key["idempotency_key"])
	item, ok := m.table[k]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	vals := params.ExpressionAttributeValues
	if params.ConditionExpression != nil && *params.ConditionExpression == pendingCondition {
		if str(item["status"]) != str(vals[":pending"]) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	next := make(map[string]types.AttributeValue, len(item)+3)
	for name, v := range item {
		next[name] = v
	}
	switch *params.UpdateExpression {
	case markCompletedUpdate:
		next["status"] = vals[":completed"]
		next["response_body"] = vals[":rb"]
		next["response_status"] = vals[":rs"]
	case markFailedUpdate:
		next["status"] = vals[":failed"]
		next["note"] = vals[":n"]
	default:
		return nil, errors.New("unexpected update expression")
	}
	next["updated_at"] = vals[":ua"]
	m.table[k] = next
	return &dyn.UpdateItemOutput{}, nil
}

func (m *simpleMock) UpdateTimeToLive(ctx context.Context, params *dyn.UpdateTimeToLiveInput, optFns ...func(*dyn.Options)) (*dyn.UpdateTimeToLiveOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttlCalls++
	if m.ttlErr != nil {
		return nil, m.ttlErr
	}
	return &dyn.UpdateTimeToLiveOutput{TimeToLiveSpecification: params.TimeToLiveSpecification}, nil
}

func (m *simpleMock) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.table, str(params.Key["idempotency_key"]))
	return &dyn.DeleteItemOutput{}, nil
}

func (m *simpleMock) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("query not supported")
}

func (m *simpleMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("scan not supported")
}

func (m *simpleMock) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("transactions not supported")
}

func (m *simpleMock) status(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return str(m.table[key]["status"])
}
