package photos

import (
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
)

var (
	ErrNotFound          = apperr.NotFound("photo_not_found", "photo not found")
	ErrAlreadyConfirmed  = apperr.Conflict("already_confirmed", "photo already confirmed")
	ErrAlreadyLiked      = apperr.Conflict("already_liked", "photo already liked")
	ErrNotLiked          = apperr.Conflict("not_liked", "photo is not liked by user")
	ErrConcurrentUpdate  = apperr.Unavailable("concurrent_update", "resource changed concurrently, retry")
	ErrForeignUpload     = apperr.Forbidden("not_uploader", "photo can only be confirmed by its uploader")
	ErrObjectNotUploaded = apperr.Invalid("object_not_uploaded", "object has not been uploaded")
	ErrKeyMismatch       = apperr.Invalid("key_mismatch", "object key does not belong to this event and user")
)

// ContentType is the only accepted upload type.
const ContentType = "image/jpeg"

// Photo is a confirmed submission to a photography event.
type Photo struct {
	PhotoID     string    `dynamodbav:"photo_id" json:"photoId"`
	EventID     string    `dynamodbav:"event_id" json:"eventId"`
	ImageKey    string    `dynamodbav:"image_key" json:"imageKey"`
	UploadedBy  string    `dynamodbav:"uploaded_by" json:"uploadedBy"`
	Likes       []string  `dynamodbav:"likes,stringset,omitempty" json:"likes"`
	IsWinner    bool      `dynamodbav:"is_winner" json:"isWinner"`
	ThemeChosen string    `dynamodbav:"theme_chosen" json:"themeChosen"`
	CreatedAt   time.Time `dynamodbav:"created_at" json:"createdAt"`

	ImageURL string `dynamodbav:"-" json:"imageUrl,omitempty"`
}

// LikeCount is the number of distinct users who liked the photo.
func (p *Photo) LikeCount() int { return len(p.Likes) }

// Grant is what a client needs to upload directly to object storage.
type Grant struct {
	UploadURL   string `json:"uploadUrl"`
	Key         string `json:"key"`
	EventID     string `json:"eventId"`
	UploadedBy  string `json:"uploadedBy"`
	ThemeChosen string `json:"themeChosen"`
}

// PhotoID derives the photo id from the object key, so one object maps to one photo.
func PhotoID(objectKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(objectKey)).String()
}
