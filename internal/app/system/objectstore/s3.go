package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3API is the subset of the S3 client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config configures the S3 backend.
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string // key prefix, e.g. "evidence/"
	PublicURL string // optional CDN or website base URL
}

// S3 stores objects in a bucket.
type S3 struct {
	client s3API
	cfg    S3Config
}

// NewS3 builds a client from the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3(s3.NewFromConfig(awsCfg), cfg), nil
}

func newS3(client s3API, cfg S3Config) *S3 {
	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &S3{client: client, cfg: cfg}
}

func (s *S3) key(id string) string { return s.cfg.Prefix + id }

func (s *S3) Put(ctx context.Context, id string, r io.Reader, opts *PutOptions) error {
	if !ValidID(id) {
		return ErrBadID
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
		Body:   r,
	}
	if opts != nil {
		if opts.ContentType != "" {
			in.ContentType = aws.String(opts.ContentType)
		}
		if opts.Size > 0 {
			in.ContentLength = aws.Int64(opts.Size)
		}
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}

func (s *S3) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrBadID
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(id)),
	})
	return err
}

func (s *S3) URL(id string) string {
	if s.cfg.PublicURL != "" {
		return s.cfg.PublicURL + "/" + s.key(id)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, s.key(id))
}
