// Package leaderboard decides photography winners and serves the per-event leaderboard.
package leaderboard

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/photos"
)

// Outcome statuses.
const (
	StatusAwarded        = "awarded"
	StatusAlreadyDecided = "already_decided"
	StatusSkipped        = "skipped"
)

// Outcome reports what DetermineWinner did.
type Outcome struct {
	Status  string `json:"status"`
	EventID string `json:"eventId"`
	PhotoID string `json:"photoId,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Likes   int    `json:"likes"`
	Reason  string `json:"reason,omitempty"`
}

type EventReader interface {
	Get(ctx context.Context, id string) (*events.Event, error)
}

type PhotoLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]photos.Photo, error)
}

// Awarder applies the winner atomically.
type Awarder interface {
	AwardWinner(ctx context.Context, e Entry, now time.Time) error
}

// Determiner picks and records the winner of a photography event.
type Determiner struct {
	events   EventReader
	photos   PhotoLister
	awards   Awarder
	winnerXP int
	nowFunc  func() time.Time
}

func NewDeterminer(ev EventReader, ph PhotoLister, aw Awarder, winnerXP int) *Determiner {
	return &Determiner{events: ev, photos: ph, awards: aw, winnerXP: winnerXP, nowFunc: time.Now}
}

// DetermineWinner awards the most liked photo of an ended photography event. Running it again
// is a no-op reported as StatusAlreadyDecided.
func (d *Determiner) DetermineWinner(ctx context.Context, eventID string) (*Outcome, error) {
	now := d.nowFunc()
	ev, err := d.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := &Outcome{EventID: eventID}

	var contest events.Photography
	switch details := ev.Details.(type) {
	case events.Photography:
		contest = details
	case events.Quiz, events.General:
		log.Printf("[leaderboard] event=%s type=%s has no photo winner", eventID, ev.Type())
		out.Status, out.Reason = StatusSkipped, "not a photography event"
		return out, nil
	default:
		return nil, events.ErrNotPhotography
	}

	if contest.WinnerPhotoID != "" {
		out.Status, out.PhotoID = StatusAlreadyDecided, contest.WinnerPhotoID
		return out, nil
	}
	if !ev.EndDate.Before(now) {
		return nil, events.ErrNotEnded
	}

	list, err := d.photos.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	winner, ok := Pick(list)
	if !ok {
		log.Printf("[leaderboard] event=%s ended without photos", eventID)
		out.Status, out.Reason = StatusSkipped, "no photos submitted"
		return out, nil
	}

	err = d.awards.AwardWinner(ctx, Entry{
		EventID:   eventID,
		UserID:    winner.UploadedBy,
		PhotoID:   winner.PhotoID,
		XP:        d.winnerXP,
		Rank:      1,
		AwardedAt: now,
	}, now)
	if errors.Is(err, events.ErrWinnerDecided) {
		out.Status = StatusAlreadyDecided
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[leaderboard] event=%s winner photo=%s user=%s likes=%d", eventID, winner.PhotoID, winner.UploadedBy, winner.LikeCount())
	out.Status = StatusAwarded
	out.PhotoID = winner.PhotoID
	out.UserID = winner.UploadedBy
	out.Likes = winner.LikeCount()
	return out, nil
}

// Pick returns the photo with the most likes. Ties go to the earliest submission, then the
// smallest id.
func Pick(list []photos.Photo) (photos.Photo, bool) {
	if len(list) == 0 {
		return photos.Photo{}, false
	}
	ranked := append([]photos.Photo(nil), list...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.LikeCount() != b.LikeCount() {
			return a.LikeCount() > b.LikeCount()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.PhotoID < b.PhotoID
	})
	return ranked[0], true
}
