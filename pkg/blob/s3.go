package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client abstracts the S3 API operations used by [S3].
// The [s3.Client] type satisfies this interface.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 keeps one object per blob in Amazon S3 or any S3-compatible object
// store (MinIO, R2, etc.).
//
// Object keys are "{prefix}/{id}". The caller is responsible for configuring
// the [s3.Client] with appropriate credentials, region, and endpoint.
type S3 struct {
	client S3Client
	bucket string
	prefix string
	codec  Codec
}

// NewS3 creates an S3-backed blob store.
//
// Any type satisfying [S3Client] is accepted; typically an [s3.Client].
// Prefix is prepended to all object keys; pass "" for no prefix.
func NewS3(client S3Client, bucket, prefix string, codec Codec) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix, codec: codec}
}

// key builds the full S3 object key for the given blob.
func (s *S3) key(id ID) string {
	if s.prefix == "" {
		return string(id)
	}
	return s.prefix + "/" + string(id)
}

// Put uploads the framed blob with a single PutObject call. The body is
// fully buffered, which matches the deferred-commit writers that call it.
func (s *S3) Put(ctx context.Context, data []byte) (ID, error) {
	framed, err := s.codec.Encode(data)
	if err != nil {
		return "", err
	}
	id := NewID()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(framed),
		ContentLength: aws.Int64(int64(len(framed))),
	})
	if err != nil {
		return "", fmt.Errorf("blob: put %s: %w", id, err)
	}
	return id, nil
}

// Get downloads the blob via GetObject.
// Returns an error wrapping ErrNotFound if the key does not exist.
func (s *S3) Get(ctx context.Context, id ID) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("blob: get %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("blob: get %s: %w", id, err)
	}
	defer out.Body.Close()
	framed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blob: get %s: %w", id, err)
	}
	return s.codec.Decode(framed)
}

// Delete removes the object via DeleteObject.
// S3 DeleteObject is already idempotent (returns success for missing keys).
func (s *S3) Delete(ctx context.Context, id ID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	return err
}

// Clear lists every object under the prefix and deletes them one by one.
func (s *S3) Clear(ctx context.Context) error {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		in.Prefix = aws.String(s.prefix + "/")
	}
	p := s3.NewListObjectsV2Paginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("blob: list %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// isS3NotFound reports whether err indicates the S3 object does not exist.
func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// Compile-time interface checks.
var (
	_ Store = (*S3)(nil)
	_ Store = (*Local)(nil)
	_ Store = (*KV)(nil)
)
