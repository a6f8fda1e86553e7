package photos

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/metrics"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

// EventReader loads the current event aggregate.
type EventReader interface {
	Get(ctx context.Context, id string) (*events.Event, error)
}

// Repository is the photo persistence used by the Coordinator. Confirm, Like and Unlike must
// be atomic across the photo, event and user records.
type Repository interface {
	Confirm(ctx context.Context, p Photo, now time.Time) error
	Like(ctx context.Context, photoID, userID string, max int) error
	Unlike(ctx context.Context, photoID, userID string) error
	Get(ctx context.Context, photoID string) (*Photo, error)
	ListByEvent(ctx context.Context, eventID string) ([]Photo, error)
}

// Objects issues presigned URLs and inspects uploaded objects.
type Objects interface {
	IssueUploadURL(ctx context.Context, key, contentType string, expiry time.Duration, metadata map[string]string) (string, error)
	IssueDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Stat(ctx context.Context, key string) (*aws.ObjectInfo, error)
}

// Publisher sends domain messages.
type Publisher interface {
	Publish(ctx context.Context, msg aws.Message) error
}

// Options tune the Coordinator.
type Options struct {
	UploadURLTTL    time.Duration
	MaxLikesPerUser int
	// VerifyUploads makes ConfirmUpload check that the object exists before recording it.
	VerifyUploads bool
}

// Coordinator runs the two-phase upload: a grant that issues a presigned URL, then a
// confirmation that records the photo against the event's current state.
type Coordinator struct {
	events    EventReader
	repo      Repository
	objects   Objects
	publisher Publisher
	metrics   metrics.Emitter
	opts      Options
	nowFunc   func() time.Time
}

func NewCoordinator(ev EventReader, repo Repository, objects Objects, publisher Publisher, m metrics.Emitter, opts Options) *Coordinator {
	if opts.UploadURLTTL <= 0 {
		opts.UploadURLTTL = time.Hour
	}
	if opts.MaxLikesPerUser <= 0 {
		opts.MaxLikesPerUser = 10
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Coordinator{
		events:    ev,
		repo:      repo,
		objects:   objects,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		nowFunc:   time.Now,
	}
}

// ObjectKey builds a unique key bound to the event and uploader.
func ObjectKey(eventID, userID string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s.jpg", keyPrefix(eventID, userID), now.UnixNano(), uuid.NewString()[:8])
}

func keyPrefix(eventID, userID string) string {
	return "photos/" + eventID + "/" + userID + "/"
}

// ownsKey reports whether key was issued for eventID and userID: the prefix must match and the
// rest must be a single path segment.
func ownsKey(key, eventID, userID string) bool {
	name, ok := strings.CutPrefix(key, keyPrefix(eventID, userID))
	return ok && name != "" && !strings.Contains(name, "/")
}

// RequestGrant checks that the event can take a photo for theme and returns an upload URL.
// Nothing is reserved; capacity is checked again at confirmation.
func (c *Coordinator) RequestGrant(ctx context.Context, eventID, userID, theme string) (*Grant, error) {
	now := c.nowFunc()
	ev, err := c.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := events.CheckPhotoSubmission(ev, theme, now); err != nil {
		if errors.Is(err, events.ErrCapacityExceeded) {
			c.metrics.Count(ctx, metrics.CapacityRejected, map[string]string{"phase": "grant"})
		}
		return nil, err
	}

	key := ObjectKey(eventID, userID, now)
	url, err := c.objects.IssueUploadURL(ctx, key, ContentType, c.opts.UploadURLTTL, map[string]string{
		"event-id":     eventID,
		"uploaded-by":  userID,
		"theme-chosen": theme,
	})
	if err != nil {
		return nil, fmt.Errorf("issue upload url: %w", err)
	}

	return &Grant{
		UploadURL:   url,
		Key:         key,
		EventID:     eventID,
		UploadedBy:  userID,
		ThemeChosen: theme,
	}, nil
}

// Confirmation identifies an uploaded object.
type Confirmation struct {
	Key         string
	EventID     string
	UploadedBy  string
	ThemeChosen string
}

// ConfirmUpload records the uploaded object as a photo of the event. Either the photo exists
// and is listed in event.photos, or neither happened.
func (c *Coordinator) ConfirmUpload(ctx context.Context, in Confirmation, callerID string) (*Photo, error) {
	if in.UploadedBy != callerID {
		return nil, ErrForeignUpload
	}
	if !ownsKey(in.Key, in.EventID, in.UploadedBy) {
		return nil, ErrKeyMismatch
	}

	if c.opts.VerifyUploads {
		info, err := c.objects.Stat(ctx, in.Key)
		if errors.Is(err, aws.ErrObjectNotFound) {
			return nil, ErrObjectNotUploaded
		}
		if err != nil {
			return nil, fmt.Errorf("stat object: %w", err)
		}
		if theme, ok := info.Metadata["theme-chosen"]; ok && theme != in.ThemeChosen {
			return nil, ErrKeyMismatch
		}
	}

	now := c.nowFunc()
	p := Photo{
		PhotoID:     PhotoID(in.Key),
		EventID:     in.EventID,
		ImageKey:    in.Key,
		UploadedBy:  in.UploadedBy,
		IsWinner:    false,
		ThemeChosen: in.ThemeChosen,
		CreatedAt:   now,
	}
	if err := c.repo.Confirm(ctx, p, now); err != nil {
		if errors.Is(err, events.ErrCapacityExceeded) {
			c.metrics.Count(ctx, metrics.CapacityRejected, map[string]string{"phase": "confirm"})
		}
		return nil, err
	}
	p.Likes = []string{}

	err := c.publisher.Publish(ctx, aws.Message{
		Type:    aws.MessagePhotoConfirmed,
		EventID: p.EventID,
		UserID:  p.UploadedBy,
		PhotoID: p.PhotoID,
	})
	if err != nil {
		log.Printf("[photos] publish confirmed photo=%s: %v", p.PhotoID, err)
	}
	return &p, nil
}

// Like records userID's like on photoID.
func (c *Coordinator) Like(ctx context.Context, photoID, userID string) error {
	err := c.repo.Like(ctx, photoID, userID, c.opts.MaxLikesPerUser)
	if errors.Is(err, users.ErrLikeLimitReached) {
		c.metrics.Count(ctx, metrics.LikeLimitRejected, nil)
	}
	return err
}

// Unlike removes userID's like from photoID.
func (c *Coordinator) Unlike(ctx context.Context, photoID, userID string) error {
	return c.repo.Unlike(ctx, photoID, userID)
}

// Get returns one photo with a download URL.
func (c *Coordinator) Get(ctx context.Context, photoID string) (*Photo, error) {
	p, err := c.repo.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	c.attachURL(ctx, p)
	return p, nil
}

// ListByEvent returns an event's photos with download URLs.
func (c *Coordinator) ListByEvent(ctx context.Context, eventID string) ([]Photo, error) {
	if _, err := c.events.Get(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := c.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		c.attachURL(ctx, &list[i])
	}
	return list, nil
}

func (c *Coordinator) attachURL(ctx context.Context, p *Photo) {
	if p.Likes == nil {
		p.Likes = []string{}
	}
	url, err := c.objects.IssueDownloadURL(ctx, p.ImageKey, c.opts.UploadURLTTL)
	if err != nil {
		log.Printf("[photos] download url photo=%s: %v", p.PhotoID, err)
		return
	}
	p.ImageURL = url
}
