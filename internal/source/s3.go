package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GetObjectAPI is the part of the S3 client used by S3Source.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads one object. When Client is nil a client is built from the
// default AWS credential chain on Open.
type S3Source struct {
	Bucket string
	Key    string
	Region string
	Client GetObjectAPI
}

// S3 returns a Source for s3://bucket/key.
func S3(bucket, key string, client GetObjectAPI) *S3Source {
	return &S3Source{Bucket: bucket, Key: key, Client: client}
}

func (s *S3Source) Name() string { return "s3://" + s.Bucket + "/" + s.Key }

func (s *S3Source) Open(ctx context.Context) (*Stream, error) {
	client := s.Client
	if client == nil {
		c, err := NewS3Client(ctx, s.Region)
		if err != nil {
			return nil, err
		}
		client = c
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.Name(), err)
	}

	var size int64
	if n := aws.ToInt64(out.ContentLength); n > 0 {
		size = n
	}
	return &Stream{ReadCloser: out.Body, Size: size}, nil
}

// NewS3Client loads the default AWS configuration, optionally pinned to
// region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(u string) (bucket, key string, err error) {
	if !hasScheme(u, "s3://") {
		return "", "", fmt.Errorf("not an s3 url: %q", u)
	}
	rest := u[len("s3://"):]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %q", u)
	}
	return bucket, key, nil
}
