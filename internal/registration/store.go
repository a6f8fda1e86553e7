package registration

import (
	"context"
	"fmt"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/payments"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

// Store runs the registration transactions across the events, users and payments tables.
type Store struct {
	client   aws.DynamoDBAPI
	events   *events.Store
	users    *users.Store
	payments *payments.Store
}

func NewStore(client aws.DynamoDBAPI, eventStore *events.Store, userStore *users.Store, paymentStore *payments.Store) *Store {
	return &Store{client: client, events: eventStore, users: userStore, payments: paymentStore}
}

// RegisterDirect adds userID to a free event and the event to the user, awarding xp.
func (s *Store) RegisterDirect(ctx context.Context, eventID, userID string, xp int, now time.Time) error {
	err := aws.TransactWrite(ctx, s.client, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			s.events.AddParticipantItem(eventID, userID, now),
			s.users.AddEventWithXPItem(userID, eventID, xp),
		},
	})
	if err == nil {
		return nil
	}

	f, ok := aws.AsTxFailure(err)
	if !ok {
		return fmt.Errorf("register: %w", err)
	}
	if old, failed := f.ConditionFailed(0); failed {
		if reason := events.RegistrationRejection(old, userID, now); reason != nil {
			return reason
		}
	}
	if old, failed := f.ConditionFailed(1); failed {
		if reason := users.EventRejection(old, eventID); reason != nil {
			return reason
		}
	}
	return ErrConcurrentUpdate
}

// CompletePaid completes the payment order and registers userID in one transaction.
// processed reports that the same payment had already completed this order.
func (s *Store) CompletePaid(ctx context.Context, orderID, paymentID, eventID, userID string, xp int, now time.Time) (processed bool, err error) {
	err = aws.TransactWrite(ctx, s.client, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			s.payments.CompleteItem(orderID, paymentID, userID, eventID, now),
			s.events.AddPaidParticipantItem(eventID, userID),
			s.users.AddEventWithXPItem(userID, eventID, xp),
		},
	})
	if err == nil {
		return false, nil
	}

	f, ok := aws.AsTxFailure(err)
	if !ok {
		return false, fmt.Errorf("complete paid registration: %w", err)
	}
	if old, failed := f.ConditionFailed(0); failed {
		processed, reason := payments.CompletionRejection(old, paymentID, userID, eventID)
		if processed || reason != nil {
			return processed, reason
		}
	}
	if _, failed := f.ConditionFailed(1); failed {
		return false, events.ErrNotFound
	}
	if old, failed := f.ConditionFailed(2); failed {
		// another order of this user already registered them
		if reason := users.EventRejection(old, eventID); reason != nil {
			return false, reason
		}
	}
	return false, ErrConcurrentUpdate
}
