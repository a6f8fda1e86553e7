package events

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// record is the flat item stored in the events table. Dates are epoch seconds so conditions
// can compare them against :now.
type record struct {
	EventID      string    `dynamodbav:"event_id"`
	EventType    Type      `dynamodbav:"event_type"`
	Title        string    `dynamodbav:"title"`
	Description  string    `dynamodbav:"description,omitempty"`
	CreatedBy    string    `dynamodbav:"created_by"`
	StartingDate time.Time `dynamodbav:"starting_date,unixtime"`
	EndDate      time.Time `dynamodbav:"event_end_date,unixtime"`
	Participants []string  `dynamodbav:"participants,stringset,omitempty"`
	EntryFee     int64     `dynamodbav:"entry_fee"`
	Currency     string    `dynamodbav:"currency,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at"`

	// photography
	Themes             []string   `dynamodbav:"themes,stringset,omitempty"`
	MaxPhotos          int        `dynamodbav:"max_photos,omitempty"`
	Photos             []string   `dynamodbav:"photos,omitempty"`
	SubmissionDeadline *time.Time `dynamodbav:"photo_submission_deadline,unixtime,omitempty"`
	WinnerPhotoID      string     `dynamodbav:"winner_photo_id,omitempty"`

	// quiz
	Questions  []Question `dynamodbav:"questions,omitempty"`
	TimeLimit  int        `dynamodbav:"time_limit,omitempty"`
	Difficulty string     `dynamodbav:"difficulty,omitempty"`
}

func toItem(e *Event) (map[string]types.AttributeValue, error) {
	r := record{
		EventID:      e.ID,
		EventType:    e.Type(),
		Title:        e.Title,
		Description:  e.Description,
		CreatedBy:    e.CreatedBy,
		StartingDate: e.StartingDate,
		EndDate:      e.EndDate,
		Participants: e.Participants,
		EntryFee:     e.EntryFee,
		Currency:     e.Currency,
		CreatedAt:    e.CreatedAt,
	}
	switch d := e.Details.(type) {
	case General:
	case Quiz:
		r.Questions = d.Questions
		r.TimeLimit = d.TimeLimit
		r.Difficulty = d.Difficulty
	case Photography:
		r.Themes = d.Themes
		r.MaxPhotos = d.MaxPhotos
		r.Photos = d.Photos
		deadline := d.SubmissionDeadline
		r.SubmissionDeadline = &deadline
		r.WinnerPhotoID = d.WinnerPhotoID
	default:
		return nil, fmt.Errorf("unknown event type %T", d)
	}

	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	// size(photos) and list_append need the list to exist, even when empty
	if r.EventType == TypePhotography {
		if _, ok := item["photos"]; !ok {
			item["photos"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
		}
	}
	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (*Event, error) {
	var r record
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	e := &Event{Header: Header{
		ID:           r.EventID,
		Title:        r.Title,
		Description:  r.Description,
		CreatedBy:    r.CreatedBy,
		StartingDate: r.StartingDate,
		EndDate:      r.EndDate,
		Participants: r.Participants,
		EntryFee:     r.EntryFee,
		Currency:     r.Currency,
		CreatedAt:    r.CreatedAt,
	}}
	if e.Participants == nil {
		e.Participants = []string{}
	}

	switch r.EventType {
	case TypeGeneral:
		e.Details = General{}
	case TypeQuiz:
		e.Details = Quiz{Questions: r.Questions, TimeLimit: r.TimeLimit, Difficulty: r.Difficulty}
	case TypePhotography:
		p := Photography{
			Themes:        r.Themes,
			MaxPhotos:     r.MaxPhotos,
			Photos:        r.Photos,
			WinnerPhotoID: r.WinnerPhotoID,
		}
		if p.Photos == nil {
			p.Photos = []string{}
		}
		if r.SubmissionDeadline != nil {
			p.SubmissionDeadline = *r.SubmissionDeadline
		}
		e.Details = p
	default:
		return nil, fmt.Errorf("event %s has unknown type %q", r.EventID, r.EventType)
	}
	return e, nil
}
