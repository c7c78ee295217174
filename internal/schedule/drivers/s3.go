package drivers

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Source
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Source keeps schedule exports in an S3-compatible bucket
type S3Source struct {
	Client S3API
	Bucket string
	Prefix string // Optional: key prefix inside the bucket
}

func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{
		Client: client,
		Bucket: bucket,
		Prefix: prefix,
	}
}

func (d *S3Source) objectKey(key string) string {
	if d.Prefix == "" {
		return key
	}
	return d.Prefix + "/" + key
}

func (d *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := d.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.Bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get from S3: %w", err)
	}
	return resp.Body, nil
}

func (d *S3Source) Save(ctx context.Context, key string, body io.Reader) error {
	_, err := d.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.Bucket),
		Key:         aws.String(d.objectKey(key)),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}
