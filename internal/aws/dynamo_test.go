package aws

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConditionFailed(t *testing.T) {
	assert.True(t, IsConditionFailed(&types.ConditionalCheckFailedException{}))
	assert.True(t, IsConditionFailed(fmt.Errorf("put: %w", &types.ConditionalCheckFailedException{})))
	assert.False(t, IsConditionFailed(errors.New("boom")))
}

func TestTxFailure(t *testing.T) {
	old := map[string]types.AttributeValue{"event_id": S("e1")}
	err := fmt.Errorf("transact: %w", NewTxCanceled(3, map[int]map[string]types.AttributeValue{1: old}))

	f, ok := AsTxFailure(err)
	require.True(t, ok)

	_, failed := f.ConditionFailed(0)
	assert.False(t, failed)

	item, failed := f.ConditionFailed(1)
	assert.True(t, failed)
	assert.Equal(t, old, item)

	_, failed = f.ConditionFailed(5)
	assert.False(t, failed)
	assert.False(t, f.Conflicted())

	_, ok = AsTxFailure(errors.New("other"))
	assert.False(t, ok)
}

// txScript answers successive TransactWriteItems calls with the scripted errors.
type txScript struct {
	DynamoDBAPI
	errs  []error
	calls int
}

func (s *txScript) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func fastBackoff(t *testing.T) {
	prev := TxBackoff
	TxBackoff = time.Millisecond
	t.Cleanup(func() { TxBackoff = prev })
}

func TestTxFailure_OnlyConflicted(t *testing.T) {
	f, ok := AsTxFailure(NewTxConflict(2, 1))
	require.True(t, ok)
	assert.True(t, f.Conflicted())
	assert.True(t, f.OnlyConflicted())

	mixed := NewTxConflict(2, 1)
	mixed.CancellationReasons[0] = types.CancellationReason{Code: String("ConditionalCheckFailed")}
	f, _ = AsTxFailure(mixed)
	assert.False(t, f.OnlyConflicted())
}

func TestTransactWrite(t *testing.T) {
	fastBackoff(t)
	full := NewTxCanceled(2, map[int]map[string]types.AttributeValue{1: {"event_id": S("e1")}})

	testCases := []struct {
		name  string
		errs  []error
		calls int
		check func(t *testing.T, err error)
	}{
		{"success", nil, 1, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"conflict_then_condition", []error{NewTxConflict(2, 1), full}, 2, func(t *testing.T, err error) {
			f, ok := AsTxFailure(err)
			require.True(t, ok)
			_, failed := f.ConditionFailed(1)
			assert.True(t, failed)
		}},
		{"conflict_then_success", []error{NewTxConflict(2, 0)}, 2, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"condition_not_retried", []error{full}, 1, func(t *testing.T, err error) { assert.Error(t, err) }},
		{"other_error_not_retried", []error{errors.New("throttled")}, 1, func(t *testing.T, err error) { assert.EqualError(t, err, "throttled") }},
		{"conflicts_exhausted", []error{NewTxConflict(2, 1), NewTxConflict(2, 1), NewTxConflict(2, 1), NewTxConflict(2, 1)}, MaxTxAttempts, func(t *testing.T, err error) {
			f, ok := AsTxFailure(err)
			require.True(t, ok)
			assert.True(t, f.OnlyConflicted())
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := &txScript{errs: tc.errs}
			err := TransactWrite(context.Background(), s, &dynamodb.TransactWriteItemsInput{})
			tc.check(t, err)
			assert.Equal(t, tc.calls, s.calls)
		})
	}
}

func TestTransactWrite_StopsOnCanceledContext(t *testing.T) {
	prev := TxBackoff
	TxBackoff = time.Hour
	t.Cleanup(func() { TxBackoff = prev })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &txScript{errs: []error{NewTxConflict(1, 0)}}
	err := TransactWrite(ctx, s, &dynamodb.TransactWriteItemsInput{})
	assert.Error(t, err)
	assert.Equal(t, 1, s.calls)
}
