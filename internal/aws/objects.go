package aws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ErrObjectNotFound is returned by Stat when the key has no object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore issues time-boxed capabilities on a single bucket. Signing is delegated to the S3 presigner.
type ObjectStore struct {
	s3        S3API
	presigner PresignAPI
	bucket    string
}

// NewObjectStore returns an ObjectStore bound to bucket.
func NewObjectStore(s3Client S3API, presigner PresignAPI, bucket string) *ObjectStore {
	return &ObjectStore{s3: s3Client, presigner: presigner, bucket: bucket}
}

// ObjectInfo is what Stat reports about an uploaded object.
type ObjectInfo struct {
	ContentType string
	Size        int64
	Metadata    map[string]string
}

// IssueUploadURL returns a PUT URL for key valid for expiry. The client must send the same
// content type and x-amz-meta-* headers, they are part of the signature.
func (o *ObjectStore) IssueUploadURL(ctx context.Context, key, contentType string, expiry time.Duration, metadata map[string]string) (string, error) {
	req, err := o.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      &o.bucket,
		Key:         &key,
		ContentType: &contentType,
		Metadata:    metadata,
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	if req.Method != "" && req.Method != http.MethodPut {
		return "", fmt.Errorf("presign put %s: unexpected method %s", key, req.Method)
	}
	return req.URL, nil
}

// IssueDownloadURL returns a GET URL for key valid for expiry.
func (o *ObjectStore) IssueDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := o.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &o.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

// Stat reports the stored object's metadata. Returns ErrObjectNotFound if nothing was uploaded.
func (o *ObjectStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := o.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &o.bucket,
		Key:    &key,
	})
	if err != nil {
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return nil, ErrObjectNotFound
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}

	info := &ObjectInfo{Metadata: out.Metadata}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	return info, nil
}
