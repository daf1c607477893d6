package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Backend implements Backend on an S3 bucket. Credentials are resolved
// through the SDK's default chain (environment, shared config, instance
// role); the backend never accepts credentials explicitly.
type S3Backend struct {
	client *s3.Client
	bucket string
	region string
}

// NewS3Backend creates an S3 storage backend for the given bucket.
// Failures to resolve the ambient AWS configuration surface as ConfigError
// at construction rather than as runtime I/O errors.
func NewS3Backend(ctx context.Context, bucket, region string) (*S3Backend, error) {
	if bucket == "" {
		return nil, &ConfigError{Reason: "s3 bucket name is required"}
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("load aws config: %v", err)}
	}
	return &S3Backend{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
	}, nil
}

// Put uploads data to key as a single object. S3 put semantics are already
// atomic: readers see either the previous object or the new one.
func (b *S3Backend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeForKey(key)),
	})
	if err != nil {
		return classifyS3Error("put", key, err)
	}
	return nil
}

// Get downloads the object at key.
func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
		}
		return nil, classifyS3Error("get", key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &TransientError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// List returns all keys under prefix. S3 imposes no ordering guarantee.
func (b *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyS3Error("list", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Delete removes the object at key. S3 deletion of a missing key succeeds,
// which gives us the idempotency the contract requires for free.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3Error("delete", key, err)
	}
	return nil
}

// Location returns the s3:// URL for key.
func (b *S3Backend) Location(key string) string {
	return "s3://" + b.bucket + "/" + key
}

// classifyS3Error splits SDK failures into the retry-eligible transient class
// and the permanent class. Unrecognized API error codes are treated as
// permanent; non-API failures (connection resets, timeouts) as transient.
func classifyS3Error(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &PermanentError{Op: op, Key: key, Err: err}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "RequestTimeout", "SlowDown", "InternalError", "ServiceUnavailable",
			"Throttling", "ThrottlingException", "RequestLimitExceeded":
			return &TransientError{Op: op, Key: key, Err: err}
		default:
			return &PermanentError{Op: op, Key: key, Err: err}
		}
	}
	return &TransientError{Op: op, Key: key, Err: err}
}
