package photos

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-idempotent-contests/internal/aws"
	"github.com/imrishuroy/go-idempotent-contests/internal/events"
	"github.com/imrishuroy/go-idempotent-contests/internal/users"
)

// memDB is an in-memory stand-in for the events, photos and users tables. Every operation
// holds the lock for its whole duration, matching a DynamoDB transaction.
type memDB struct {
	mu        sync.Mutex
	events    map[string]*events.Event
	photos    map[string]*Photo
	likeCount map[string]int
	confirms  int
}

func newMemDB() *memDB {
	return &memDB{
		events:    map[string]*events.Event{},
		photos:    map[string]*Photo{},
		likeCount: map[string]int{},
	}
}

func (db *memDB) Get(ctx context.Context, id string) (*events.Event, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	e, ok := db.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	cp := *e
	if p, ok := e.Photography(); ok {
		p.Photos = append([]string(nil), p.Photos...)
		cp.Details = p
	}
	return &cp, nil
}

func (db *memDB) Confirm(ctx context.Context, p Photo, now time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.confirms++
	if _, ok := db.photos[p.PhotoID]; ok {
		return ErrAlreadyConfirmed
	}
	e, ok := db.events[p.EventID]
	if !ok {
		return events.ErrNotFound
	}
	if err := events.CheckPhotoSubmission(e, p.ThemeChosen, now); err != nil {
		return err
	}
	ph, _ := e.Photography()
	ph.Photos = append(ph.Photos, p.PhotoID)
	e.Details = ph
	db.photos[p.PhotoID] = &p
	return nil
}

func (db *memDB) Like(ctx context.Context, photoID, userID string, max int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.photos[photoID]
	if !ok {
		return ErrNotFound
	}
	for _, u := range p.Likes {
		if u == userID {
			return ErrAlreadyLiked
		}
	}
	if db.likeCount[userID] >= max {
		return users.ErrLikeLimitReached
	}
	p.Likes = append(p.Likes, userID)
	db.likeCount[userID]++
	return nil
}

func (db *memDB) Unlike(ctx context.Context, photoID, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.photos[photoID]
	if !ok {
		return ErrNotFound
	}
	for i, u := range p.Likes {
		if u == userID {
			p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
			db.likeCount[userID]--
			return nil
		}
	}
	return ErrNotLiked
}

func (db *memDB) GetPhoto(photoID string) *Photo {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.photos[photoID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// photoRepo adapts memDB to Repository; memDB.Get already serves EventReader.
type photoRepo struct{ *memDB }

func (r photoRepo) Get(ctx context.Context, photoID string) (*Photo, error) {
	if p := r.GetPhoto(photoID); p != nil {
		return p, nil
	}
	return nil, ErrNotFound
}

func (r photoRepo) ListByEvent(ctx context.Context, eventID string) ([]Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Photo
	for _, p := range r.photos {
		if p.EventID == eventID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeObjects struct {
	mu       sync.Mutex
	uploads  int
	uploaded map[string]map[string]string
	lastMeta map[string]string
	lastType string
}

func (o *fakeObjects) IssueUploadURL(ctx context.Context, key, contentType string, expiry time.Duration, metadata map[string]string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uploads++
	o.lastMeta = metadata
	o.lastType = contentType
	return "https://bucket.s3.local/" + key + "?X-Amz-Signature=abc", nil
}

func (o *fakeObjects) IssueDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://bucket.s3.local/" + key + "?get", nil
}

func (o *fakeObjects) Stat(ctx context.Context, key string) (*aws.ObjectInfo, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	meta, ok := o.uploaded[key]
	if !ok {
		return nil, aws.ErrObjectNotFound
	}
	return &aws.ObjectInfo{ContentType: ContentType, Metadata: meta}, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []aws.Message
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, msg aws.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return p.err
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) Count(ctx context.Context, name string, dims map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[name]++
}
