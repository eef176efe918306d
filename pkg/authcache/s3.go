package authcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the store uses.
// *s3.Client satisfies it; tests inject a fake.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3KV persists values as S3 objects. Useful when the server runs on
// ephemeral hosts and a warm cache should survive re-scheduling.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	kv := authcache.NewS3KV(s3.NewFromConfig(cfg), "my-bucket", "tasktwin/")
type S3KV struct {
	client S3API
	bucket string
	prefix string
}

// NewS3KV creates a store writing under prefix in bucket.
func NewS3KV(client S3API, bucket, prefix string) *S3KV {
	return &S3KV{
		client: client,
		bucket: bucket,
		prefix: strings.TrimLeft(prefix, "/"),
	}
}

// Load fetches the object for key, or (nil, nil) if it does not exist.
func (s *S3KV) Load(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("authcache: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("authcache: s3 read %s: %w", key, err)
	}
	return data, nil
}

// Store writes value as the object for key.
func (s *S3KV) Store(ctx context.Context, key string, value []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("authcache: s3 put %s: %w", key, err)
	}
	return nil
}

// Delete removes the object for key. Deleting a missing object is not an
// error in S3, matching the KV contract.
func (s *S3KV) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return fmt.Errorf("authcache: s3 delete %s: %w", key, err)
	}
	return nil
}
