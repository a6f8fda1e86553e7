package photos

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

// EventIndex is the GSI on event_id.
const EventIndex = "event_id-index"

const (
	putCondition = "attribute_not_exists(photo_id)"

	likeCondition   = "attribute_exists(photo_id) AND NOT contains(likes, :uid)"
	likeUpdate      = "ADD likes :uset"
	unlikeCondition = "attribute_exists(photo_id) AND contains(likes, :uid)"
	unlikeUpdate    = "DELETE likes :uset"

	winnerCondition = "attribute_exists(photo_id) AND is_winner = :false"
	winnerUpdate    = "SET is_winner = :true"
)

// Store persists photos and runs the transactions that span photos, events and users.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	events    *events.Store
	users     *users.Store
}

func NewStore(client aws.DynamoDBAPI, tableName string, eventStore *events.Store, userStore *users.Store) *Store {
	return &Store{client: client, tableName: tableName, events: eventStore, users: userStore}
}

// Confirm creates the photo and appends it to the event in one transaction. The event
// condition re-checks type, theme, capacity and deadline against the stored aggregate.
func (s *Store) Confirm(ctx context.Context, p Photo, now time.Time) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal photo: %w", err)
	}

	err = aws.TransactWrite(ctx, s.client, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                           &s.tableName,
				Item:                                item,
				ConditionExpression:                 aws.String(putCondition),
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}},
			s.events.AppendPhotoItem(p.EventID, p.PhotoID, p.ThemeChosen, now),
		},
	})
	if err == nil {
		return nil
	}

	f, ok := aws.AsTxFailure(err)
	if !ok {
		return fmt.Errorf("confirm photo: %w", err)
	}
	if _, failed := f.ConditionFailed(0); failed {
		return ErrAlreadyConfirmed
	}
	if old, failed := f.ConditionFailed(1); failed {
		if reason := events.PhotoRejection(old, p.ThemeChosen, now); reason != nil {
			return reason
		}
	}
	return ErrConcurrentUpdate
}

// Like adds userID to the photo's likes and counts it against the user's like budget.
func (s *Store) Like(ctx context.Context, photoID, userID string, max int) error {
	err := aws.TransactWrite(ctx, s.client, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			s.likesItem(photoID, userID, likeUpdate, likeCondition),
			s.users.LikeItem(userID, max),
		},
	})
	if err == nil {
		return nil
	}

	f, ok := aws.AsTxFailure(err)
	if !ok {
		return fmt.Errorf("like photo: %w", err)
	}
	if old, failed := f.ConditionFailed(0); failed {
		if len(old) == 0 {
			return ErrNotFound
		}
		return ErrAlreadyLiked
	}
	if old, failed := f.ConditionFailed(1); failed {
		if reason := users.LikeRejection(old, max); reason != nil {
			return reason
		}
	}
	return ErrConcurrentUpdate
}

// Unlike removes userID from the photo's likes and returns the like to the user's budget.
func (s *Store) Unlike(ctx context.Context, photoID, userID string) error {
	err := aws.TransactWrite(ctx, s.client, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			s.likesItem(photoID, userID, unlikeUpdate, unlikeCondition),
			s.users.UnlikeItem(userID),
		},
	})
	if err == nil {
		return nil
	}

	f, ok := aws.AsTxFailure(err)
	if !ok {
		return fmt.Errorf("unlike photo: %w", err)
	}
	if old, failed := f.ConditionFailed(0); failed {
		if len(old) == 0 {
			return ErrNotFound
		}
		return ErrNotLiked
	}
	if old, failed := f.ConditionFailed(1); failed {
		if reason := users.UnlikeRejection(old); reason != nil {
			return reason
		}
	}
	return ErrConcurrentUpdate
}

func (s *Store) likesItem(photoID, userID, update, cond string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           &s.tableName,
		Key:                 aws.Key("photo_id", photoID),
		UpdateExpression:    aws.String(update),
		ConditionExpression: aws.String(cond),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uset": aws.SS(userID),
			":uid":  aws.S(userID),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// MarkWinnerItem flags the photo as winner; it fails if the photo already is one.
func (s *Store) MarkWinnerItem(photoID string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:           &s.tableName,
		Key:                 aws.Key("photo_id", photoID),
		UpdateExpression:    aws.String(winnerUpdate),
		ConditionExpression: aws.String(winnerCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  aws.Bool(true),
			":false": aws.Bool(false),
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// Get returns the photo or ErrNotFound.
func (s *Store) Get(ctx context.Context, photoID string) (*Photo, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       aws.Key("photo_id", photoID),
	})
	if err != nil {
		return nil, fmt.Errorf("get photo: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var p Photo
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal photo: %w", err)
	}
	return &p, nil
}

// ListByEvent returns an event's photos, oldest first.
func (s *Store) ListByEvent(ctx context.Context, eventID string) ([]Photo, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("event_id").Equal(expression.Value(eventID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	input := &dyn.QueryInput{
		TableName:                 &s.tableName,
		IndexName:                 aws.String(EventIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var out []Photo
	p := dyn.NewQueryPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query photos: %w", err)
		}
		var batch []Photo
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal photos: %w", err)
		}
		out = append(out, batch...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
