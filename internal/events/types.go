package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates the event variants.
type Type string

const (
	TypeGeneral     Type = "general"
	TypeQuiz        Type = "quiz"
	TypePhotography Type = "photography"
)

// Header holds the fields every event has.
type Header struct {
	ID           string    `json:"eventId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	CreatedBy    string    `json:"createdBy"`
	StartingDate time.Time `json:"startingDate"`
	EndDate      time.Time `json:"eventEndDate"`
	Participants []string  `json:"participants"`
	EntryFee     int64     `json:"entryFee"` // minor units; 0 is free
	Currency     string    `json:"currency,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Details is the variant payload: General, Quiz or Photography.
type Details interface {
	Type() Type
	details()
}

type General struct{}

type Question struct {
	Text    string   `json:"text" dynamodbav:"text"`
	Options []string `json:"options" dynamodbav:"options"`
	Answer  int      `json:"answer" dynamodbav:"answer"`
}

type Quiz struct {
	Questions  []Question `json:"questions"`
	TimeLimit  int        `json:"timeLimit"` // seconds
	Difficulty string     `json:"difficulty,omitempty"`
}

// Photography events accept theme-bound photo submissions up to MaxPhotos.
type Photography struct {
	Themes             []string  `json:"themes"`
	MaxPhotos          int       `json:"maxPhotos"`
	Photos             []string  `json:"photos"`
	SubmissionDeadline time.Time `json:"photoSubmissionDeadline"`
	WinnerPhotoID      string    `json:"winnerPhotoId,omitempty"`
}

func (General) Type() Type     { return TypeGeneral }
func (Quiz) Type() Type        { return TypeQuiz }
func (Photography) Type() Type { return TypePhotography }

func (General) details()     {}
func (Quiz) details()        {}
func (Photography) details() {}

// Event is a header plus exactly one variant.
type Event struct {
	Header
	Details Details `json:"details"`
}

func (e *Event) Type() Type { return e.Details.Type() }

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Header
		EventType Type    `json:"eventType"`
		Details   Details `json:"details"`
	}{e.Header, e.Details.Type(), e.Details})
}

// Photography returns the photography payload, or false for other variants.
func (e *Event) Photography() (Photography, bool) {
	p, ok := e.Details.(Photography)
	return p, ok
}

// Ended reports whether the event is over at now.
func (e *Event) Ended(now time.Time) bool {
	return !e.EndDate.After(now)
}

// HasParticipant reports whether userID is registered.
func (e *Event) HasParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// HasTheme reports whether theme is offered by a photography event.
func (p Photography) HasTheme(theme string) bool {
	for _, t := range p.Themes {
		if t == theme {
			return true
		}
	}
	return false
}

// Full reports whether no more photos are accepted.
func (p Photography) Full() bool {
	return len(p.Photos) >= p.MaxPhotos
}

// Validate checks variant invariants before an event is stored.
func (e *Event) Validate() error {
	if e.Details == nil {
		return fmt.Errorf("event %s has no details", e.ID)
	}
	if !e.EndDate.After(e.StartingDate) {
		return fmt.Errorf("event end date must be after starting date")
	}
	switch d := e.Details.(type) {
	case General:
	case Quiz:
		if len(d.Questions) == 0 {
			return fmt.Errorf("quiz needs at least one question")
		}
	case Photography:
		if len(d.Themes) == 0 {
			return fmt.Errorf("photography event needs at least one theme")
		}
		if d.MaxPhotos <= 0 {
			return fmt.Errorf("photography event needs a positive max photos")
		}
	default:
		return fmt.Errorf("unknown event type %T", d)
	}
	return nil
}
