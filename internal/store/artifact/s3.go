package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	log "github.com/sirupsen/logrus"

	"voiceeval/internal/models"
	"voiceeval/internal/store"
)

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket        string
	Region        string
	DefaultRegion string // public URLs for this region omit the region segment
	Timeout       time.Duration
}

// S3Store keeps artifacts in a single S3 bucket.
type S3Store struct {
	client s3API
	opts   S3Options
}

var _ store.ArtifactStore = (*S3Store)(nil)

// NewS3Store loads AWS credentials from the default chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	log.Infof("S3 artifact store initialized (bucket=%s region=%s)", opts.Bucket, opts.Region)
	return newS3Store(s3.NewFromConfig(awsCfg), opts), nil
}

func newS3Store(client s3API, opts S3Options) *S3Store {
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = "us-east-1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &S3Store{client: client, opts: opts}
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Errorf("S3 upload error: key=%s: %v", key, err)
		return &models.UploadError{Message: fmt.Sprintf("S3 upload error: %v", err), Err: err}
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("s3 object %s: %w", key, store.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) PublicURL(key string) string {
	return PublicS3URL(s.opts.Bucket, s.opts.Region, s.opts.DefaultRegion, key)
}

func (s *S3Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)}); err != nil {
		return fmt.Errorf("s3 head bucket %s: %w", s.opts.Bucket, err)
	}
	return nil
}

// BucketRegion asks S3 where the bucket lives. An empty location constraint means us-east-1.
func (s *S3Store) BucketRegion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(s.opts.Bucket)})
	if err != nil {
		return "", fmt.Errorf("s3 bucket location %s: %w", s.opts.Bucket, err)
	}
	if out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(out.LocationConstraint), nil
}

// PublicS3URL builds the virtual-hosted URL of key. The key is query-escaped as a
// single path segment, so "/" becomes %2F and spaces become "+".
func PublicS3URL(bucket, region, defaultRegion, key string) string {
	var endpoint string
	if region == "" || region == defaultRegion {
		endpoint = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	} else {
		endpoint = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return endpoint + "/" + url.QueryEscape(key)
}
