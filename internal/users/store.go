package users

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
)

var (
	ErrNotFound         = apperr.NotFound("user_not_found", "user not found")
	ErrLikeLimitReached = apperr.Forbidden("like_limit_reached", "like limit reached")
	ErrNothingToUnlike  = apperr.Conflict("no_likes", "user has no likes to remove")
	ErrAlreadyJoined    = apperr.Conflict("already_registered", "user is already a participant")
)

const (
	existsCondition = "attribute_exists(user_id)"
	createCondition = "attribute_not_exists(user_id)"

	addEventXPCondition = "attribute_exists(user_id) AND NOT contains(events, :eid)"
	addEventXPUpdate    = "ADD events :eset, xp :xp"
	addXPUpdate         = "ADD xp :xp"

	likeCondition   = "attribute_exists(user_id) AND (attribute_not_exists(like_count) OR like_count < :max)"
	likeUpdate      = "SET like_count = if_not_exists(like_count, :zero) + :one"
	unlikeCondition = "attribute_exists(user_id) AND like_count > :zero"
	unlikeUpdate    = "SET like_count = like_count - :one"
)

// User is a participant profile.
type User struct {
	UserID    string    `dynamodbav:"user_id" json:"userId"`
	Name      string    `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Email     string    `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Events    []string  `dynamodbav:"events,stringset,omitempty" json:"events"`
	XP        int       `dynamodbav:"xp" json:"xp"`
	LikeCount int       `dynamodbav:"like_count" json:"likeCount"`
	CreatedAt time.Time `dynamodbav:"created_at" json:"createdAt"`
}

// Store persists users in DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// Ensure creates the profile on first sight and returns the stored one.
func (s *Store) Ensure(ctx context.Context, userID, name, email string) (*User, error) {
	u := User{UserID: userID, Name: name, Email: email, CreatedAt: s.nowFunc()}
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String(createCondition),
	})
	if err != nil && !aws.IsConditionFailed(err) {
		return nil, fmt.Errorf("put user: %w", err)
	}
	return s.Get(ctx, userID)
}

// Get returns the user or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID string) (*User, error) {
	consistent := true
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            aws.Key("user_id", userID),
		ConsistentRead: &consistent,
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return unmarshal(out.Item)
}

// TopByXP returns up to limit users ordered by xp, highest first.
func (s *Store) TopByXP(ctx context.Context, limit int) ([]User, error) {
	var all []User
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.tableName})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		var batch []User
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		all = append(all, batch...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].XP != all[j].XP {
			return all[i].XP > all[j].XP
		}
		return all[i].UserID < all[j].UserID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) update(userID, expr, cond string, values map[string]types.AttributeValue) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                           &s.tableName,
		Key:                                 aws.Key("user_id", userID),
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}}
}

// AddEventWithXPItem records eventID and awards xp. It fails when the user already has the
// event, so the xp is credited once per event.
func (s *Store) AddEventWithXPItem(userID, eventID string, xp int) types.TransactWriteItem {
	return s.update(userID, addEventXPUpdate, addEventXPCondition, map[string]types.AttributeValue{
		":eset": aws.SS(eventID),
		":eid":  aws.S(eventID),
		":xp":   aws.N(int64(xp)),
	})
}

// EventRejection explains why AddEventWithXPItem failed.
func EventRejection(old map[string]types.AttributeValue, eventID string) error {
	if len(old) == 0 {
		return ErrNotFound
	}
	if set, ok := old["events"].(*types.AttributeValueMemberSS); ok {
		for _, e := range set.Value {
			if e == eventID {
				return ErrAlreadyJoined
			}
		}
	}
	return nil
}

// AddXPItem awards xp.
func (s *Store) AddXPItem(userID string, xp int) types.TransactWriteItem {
	return s.update(userID, addXPUpdate, existsCondition, map[string]types.AttributeValue{
		":xp": aws.N(int64(xp)),
	})
}

// LikeItem counts one more like for userID while below max.
func (s *Store) LikeItem(userID string, max int) types.TransactWriteItem {
	return s.update(userID, likeUpdate, likeCondition, map[string]types.AttributeValue{
		":max":  aws.N(int64(max)),
		":zero": aws.N(0),
		":one":  aws.N(1),
	})
}

// UnlikeItem gives one like back.
func (s *Store) UnlikeItem(userID string) types.TransactWriteItem {
	return s.update(userID, unlikeUpdate, unlikeCondition, map[string]types.AttributeValue{
		":zero": aws.N(0),
		":one":  aws.N(1),
	})
}

// LikeRejection explains why LikeItem failed given the user image from the cancellation.
func LikeRejection(old map[string]types.AttributeValue, max int) error {
	if len(old) == 0 {
		return ErrNotFound
	}
	if likeCount(old) >= max {
		return ErrLikeLimitReached
	}
	return nil
}

// UnlikeRejection explains why UnlikeItem failed.
func UnlikeRejection(old map[string]types.AttributeValue) error {
	if len(old) == 0 {
		return ErrNotFound
	}
	if likeCount(old) <= 0 {
		return ErrNothingToUnlike
	}
	return nil
}

func likeCount(item map[string]types.AttributeValue) int {
	n, ok := item["like_count"].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	v, _ := strconv.Atoi(n.Value)
	return v
}

func unmarshal(item map[string]types.AttributeValue) (*User, error) {
	var u User
	if err := attributevalue.UnmarshalMap(item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	if u.Events == nil {
		u.Events = []string{}
	}
	return &u, nil
}
