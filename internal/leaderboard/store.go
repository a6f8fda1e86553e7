package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/photos"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

var ErrConcurrentUpdate = apperr.Unavailable("concurrent_update", "winner changed concurrently, retry")

const entryCondition = "attribute_not_exists(user_id)"

// Entry is one award on an event's leaderboard.
type Entry struct {
	EventID   string    `dynamodbav:"event_id" json:"eventId"`
	UserID    string    `dynamodbav:"user_id" json:"userId"`
	PhotoID   string    `dynamodbav:"photo_id,omitempty" json:"photoId,omitempty"`
	XP        int       `dynamodbav:"xp" json:"xp"`
	Rank      int       `dynamodbav:"rank" json:"rank"`
	AwardedAt time.Time `dynamodbav:"awarded_at" json:"awardedAt"`
}

// Store persists leaderboard entries (PK event_id, SK user_id) and runs the award transaction.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	events    *events.Store
	photos    *photos.Store
	users     *users.Store
}

func NewStore(client aws.DynamoDBAPI, tableName string, eventStore *events.Store, photoStore *photos.Store, userStore *users.Store) *Store {
	return &Store{client: client, tableName: tableName, events: eventStore, photos: photoStore, users: userStore}
}

// AwardWinner records the winning photo on the event and the photo, adds the leaderboard
// entry and credits the uploader, all or nothing.
func (s *Store) AwardWinner(ctx context.Context, e Entry, now time.Time) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	err = aws.TransactWrite(ctx, s.client, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			s.events.SetWinnerItem(e.EventID, e.PhotoID, now),
			s.photos.MarkWinnerItem(e.PhotoID),
			{Put: &types.Put{
				TableName:                           &s.tableName,
				Item:                                item,
				ConditionExpression:                 aws.String(entryCondition),
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			}},
			s.users.AddXPItem(e.UserID, e.XP),
		},
	})
	if err == nil {
		return nil
	}

	f, ok := aws.AsTxFailure(err)
	if !ok {
		return fmt.Errorf("award winner: %w", err)
	}
	if old, failed := f.ConditionFailed(0); failed {
		if reason := events.WinnerRejection(old, now); reason != nil {
			return reason
		}
	}
	if old, failed := f.ConditionFailed(1); failed {
		if len(old) == 0 {
			return photos.ErrNotFound
		}
		return events.ErrWinnerDecided
	}
	if _, failed := f.ConditionFailed(2); failed {
		return events.ErrWinnerDecided
	}
	if _, failed := f.ConditionFailed(3); failed {
		return users.ErrNotFound
	}
	return ErrConcurrentUpdate
}

// ListByEvent returns an event's entries by rank.
func (s *Store) ListByEvent(ctx context.Context, eventID string) ([]Entry, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("event_id").Equal(expression.Value(eventID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	input := &dyn.QueryInput{
		TableName:                 &s.tableName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	out := []Entry{}
	p := dyn.NewQueryPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query leaderboard: %w", err)
		}
		var batch []Entry
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal entries: %w", err)
		}
		out = append(out, batch...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}
