package events

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
)

var (
	ErrNotFound          = apperr.NotFound("event_not_found", "event not found")
	ErrExists            = apperr.Conflict("event_exists", "event already exists")
	ErrNotPhotography    = apperr.Invalid("not_photography_event", "event does not accept photos")
	ErrThemeNotAllowed   = apperr.Invalid("theme_not_allowed", "theme is not offered by this event")
	ErrSubmissionClosed  = apperr.Invalid("submission_closed", "photo submissions are closed")
	ErrCapacityExceeded  = apperr.Conflict("capacity_exceeded", "event has reached its photo limit")
	ErrAlreadyRegistered = apperr.Conflict("already_registered", "user is already a participant")
	ErrPaymentRequired   = apperr.Invalid("payment_required", "event requires payment")
	ErrEnded             = apperr.Invalid("event_ended", "event has ended")
	ErrNotEnded          = apperr.Conflict("event_not_ended", "event has not ended yet")
	ErrWinnerDecided     = apperr.Conflict("winner_already_decided", "event winner already decided")
)

// Expressions are shared with the tests that assert them.
const (
	createCondition = "attribute_not_exists(event_id)"
	deleteCondition = "attribute_exists(event_id)"

	appendPhotoCondition = "attribute_exists(event_id) AND event_type = :photography AND contains(themes, :theme) AND size(photos) < max_photos AND photo_submission_deadline > :now"
	appendPhotoUpdate    = "SET photos = list_append(photos, :pids)"

	addParticipantCondition     = "attribute_exists(event_id) AND NOT contains(participants, :uid) AND entry_fee = :zero AND event_end_date > :now"
	addPaidParticipantCondition = "attribute_exists(event_id)"
	addParticipantUpdate        = "ADD participants :uset"

	setWinnerCondition = "attribute_exists(event_id) AND event_type = :photography AND attribute_not_exists(winner_photo_id) AND event_end_date < :now"
	setWinnerUpdate    = "SET winner_photo_id = :pid"
)

// Store persists events in DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Create stores a new event. Photography events are stored with an empty photos list.
func (s *Store) Create(ctx context.Context, e *Event) error {
	if err := e.Validate(); err != nil {
		return apperr.Invalid("invalid_event", err.Error())
	}
	item, err := toItem(e)
	if err != nil {
		return err
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
		return fmt.Errorf("put event: %w", err)
	}
	return nil
}

// Get returns the event or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	consistent := true
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            aws.Key("event_id", id),
		ConsistentRead: &consistent,
	})
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return fromItem(out.Item)
}

// List returns all events, optionally only those of type typ.
func (s *Store) List(ctx context.Context, typ Type) ([]*Event, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if typ != "" {
		expr, err := expression.NewBuilder().
			WithFilter(expression.Name("event_type").Equal(expression.Value(string(typ)))).
			Build()
		if err != nil {
			return nil, fmt.Errorf("build filter: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var out []*Event
	p := dyn.NewScanPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		for _, item := range page.Items {
			e, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// Delete removes an event. Photos and payments referencing it are left in place.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 aws.Key("event_id", id),
		ConditionExpression: aws.String(deleteCondition),
	})
	if err != nil {
		if aws.IsConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// AppendPhotoItem appends photoID to the event's photos if the event is a photography event
// offering theme, is below capacity and still open for submissions at now.
func (s *Store) AppendPhotoItem(eventID, photoID, theme string, now time.Time) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           &s.tableName,
		Key:                 aws.Key("event_id", eventID),
		UpdateExpression:    aws.String(appendPhotoUpdate),
		ConditionExpression: aws.String(appendPhotoCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pids":        &types.AttributeValueMemberL{Value: []types.AttributeValue{aws.S(photoID)}},
			":photography": aws.S(string(TypePhotography)),
			":theme":       aws.S(theme),
			":now":         aws.N(now.Unix()),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// AddParticipantItem registers userID for a free, open event they are not yet part of.
func (s *Store) AddParticipantItem(eventID, userID string, now time.Time) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           &s.tableName,
		Key:                 aws.Key("event_id", eventID),
		UpdateExpression:    aws.String(addParticipantUpdate),
		ConditionExpression: aws.String(addParticipantCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uset": aws.SS(userID),
			":uid":  aws.S(userID),
			":zero": aws.N(0),
			":now":  aws.N(now.Unix()),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// AddPaidParticipantItem registers userID after a captured payment. Set semantics make a
// repeat a no-op; the payment item guards against double processing.
func (s *Store) AddPaidParticipantItem(eventID, userID string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           &s.tableName,
		Key:                 aws.Key("event_id", eventID),
		UpdateExpression:    aws.String(addParticipantUpdate),
		ConditionExpression: aws.String(addPaidParticipantCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uset": aws.SS(userID),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// SetWinnerItem records the winning photo once, after the event ended.
func (s *Store) SetWinnerItem(eventID, photoID string, now time.Time) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           &s.tableName,
		Key:                 aws.Key("event_id", eventID),
		UpdateExpression:    aws.String(setWinnerUpdate),
		ConditionExpression: aws.String(setWinnerCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pid":         aws.S(photoID),
			":photography": aws.S(string(TypePhotography)),
			":now":         aws.N(now.Unix()),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// PhotoRejection explains why AppendPhotoItem failed, given the event image returned with the
// cancellation. It returns nil when the image satisfies every condition, meaning the event
// changed concurrently and the write may be retried.
func PhotoRejection(old map[string]types.AttributeValue, theme string, now time.Time) error {
	if len(old) == 0 {
		return ErrNotFound
	}
	e, err := fromItem(old)
	if err != nil {
		return err
	}
	return CheckPhotoSubmission(e, theme, now)
}

// CheckPhotoSubmission validates a submission against the current aggregate.
func CheckPhotoSubmission(e *Event, theme string, now time.Time) error {
	p, ok := e.Photography()
	if !ok {
		return ErrNotPhotography
	}
	if !p.HasTheme(theme) {
		return ErrThemeNotAllowed
	}
	if !p.SubmissionDeadline.After(now) {
		return ErrSubmissionClosed
	}
	if p.Full() {
		return ErrCapacityExceeded
	}
	return nil
}

// RegistrationRejection explains why AddParticipantItem failed.
func RegistrationRejection(old map[string]types.AttributeValue, userID string, now time.Time) error {
	if len(old) == 0 {
		return ErrNotFound
	}
	e, err := fromItem(old)
	if err != nil {
		return err
	}
	return CheckDirectRegistration(e, userID, now)
}

// CheckDirectRegistration validates a free registration against the current aggregate.
func CheckDirectRegistration(e *Event, userID string, now time.Time) error {
	if e.HasParticipant(userID) {
		return ErrAlreadyRegistered
	}
	if e.EntryFee > 0 {
		return ErrPaymentRequired
	}
	if e.Ended(now) {
		return ErrEnded
	}
	return nil
}

// WinnerRejection explains why SetWinnerItem failed.
func WinnerRejection(old map[string]types.AttributeValue, now time.Time) error {
	if len(old) == 0 {
		return ErrNotFound
	}
	e, err := fromItem(old)
	if err != nil {
		return err
	}
	p, ok := e.Photography()
	if !ok {
		return ErrNotPhotography
	}
	if p.WinnerPhotoID != "" {
		return ErrWinnerDecided
	}
	if !e.EndDate.Before(now) {
		return ErrNotEnded
	}
	return nil
}
