package aws

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// IsConditionFailed reports whether err is a failed ConditionExpression on a single-item write.
func IsConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException"
}

// TxFailure describes which items of a canceled TransactWriteItems call failed their condition.
type TxFailure struct {
	reasons []types.CancellationReason
}

// AsTxFailure extracts the cancellation reasons of a TransactionCanceledException.
func AsTxFailure(err error) (*TxFailure, bool) {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil, false
	}
	return &TxFailure{reasons: tce.CancellationReasons}, true
}

// ConditionFailed reports whether item i failed its condition. The returned item is the stored
// image at that time (empty when the item did not exist), populated when the write asked for
// ReturnValuesOnConditionCheckFailure ALL_OLD.
func (f *TxFailure) ConditionFailed(i int) (map[string]types.AttributeValue, bool) {
	if i < 0 || i >= len(f.reasons) {
		return nil, false
	}
	r := f.reasons[i]
	if r.Code == nil || *r.Code != "ConditionalCheckFailed" {
		return nil, false
	}
	return r.Item, true
}

// Conflicted reports whether any item was rejected because of a concurrent transaction.
func (f *TxFailure) Conflicted() bool {
	for _, r := range f.reasons {
		if r.Code != nil && *r.Code == "TransactionConflict" {
			return true
		}
	}
	return false
}

// MaxTxAttempts bounds how often TransactWrite runs a transaction that lost to a concurrent one.
const MaxTxAttempts = 4

// TxBackoff is the pause before the n-th retry of a conflicted transaction, scaled by n.
var TxBackoff = 25 * time.Millisecond

// TransactWrite runs the transaction and re-runs it while it is canceled only by
// TransactionConflict reasons, so a loser is re-evaluated against the committed state. Any
// condition failure, or a conflict on the last attempt, is returned as is.
func TransactWrite(ctx context.Context, client DynamoDBAPI, in *dynamodb.TransactWriteItemsInput) error {
	var err error
	for attempt := 1; attempt <= MaxTxAttempts; attempt++ {
		_, err = client.TransactWriteItems(ctx, in)
		f, ok := AsTxFailure(err)
		if !ok || !f.OnlyConflicted() || attempt == MaxTxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * TxBackoff):
		}
	}
	return err
}

// OnlyConflicted reports whether the cancellation came from concurrent transactions and no
// item failed its condition.
func (f *TxFailure) OnlyConflicted() bool {
	for i := range f.reasons {
		if _, failed := f.ConditionFailed(i); failed {
			return false
		}
	}
	return f.Conflicted()
}

// NewTxConflict builds a TransactionCanceledException whose listed items lost to a concurrent
// transaction. Used by fakes.
func NewTxConflict(n int, conflicted ...int) *types.TransactionCanceledException {
	tce := NewTxCanceled(n, nil)
	for _, i := range conflicted {
		tce.CancellationReasons[i] = types.CancellationReason{Code: String("TransactionConflict")}
	}
	return tce
}

// NewTxCanceled builds a TransactionCanceledException with one reason per item; failed lists
// the indexes that failed their condition with the old image to report. Used by fakes.
func NewTxCanceled(n int, failed map[int]map[string]types.AttributeValue) *types.TransactionCanceledException {
	reasons := make([]types.CancellationReason, n)
	for i := range reasons {
		if item, ok := failed[i]; ok {
			reasons[i] = types.CancellationReason{Code: String("ConditionalCheckFailed"), Item: item}
			continue
		}
		reasons[i] = types.CancellationReason{Code: String("None")}
	}
	msg := "Transaction cancelled"
	return &types.TransactionCanceledException{Message: &msg, CancellationReasons: reasons}
}

// S returns a string attribute value.
func S(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

// N returns a number attribute value.
func N(v int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}
}

// SS returns a string-set attribute value.
func SS(v ...string) types.AttributeValue { return &types.AttributeValueMemberSS{Value: v} }

// Bool returns a boolean attribute value.
func Bool(v bool) types.AttributeValue { return &types.AttributeValueMemberBOOL{Value: v} }

// Key builds a single-attribute primary key.
func Key(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{name: S(value)}
}

// IsValidation reports whether err is a DynamoDB ValidationException.
func IsValidation(err error) bool {
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ValidationException"
}
