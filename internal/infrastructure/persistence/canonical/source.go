package canonical

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/ports/outbound"
)

// FileSource reads the dataset from a local path.
type FileSource struct {
	path string
}

var _ outbound.DatasetSource = (*FileSource)(nil)

// NewFileSource creates a file-backed dataset source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch opens the dataset file.
func (f *FileSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	return file, nil
}

// S3Source reads the dataset object from S3 or an S3-compatible endpoint.
type S3Source struct {
	client *s3.S3
	bucket string
	key    string
}

var _ outbound.DatasetSource = (*S3Source)(nil)

// NewS3Source creates an S3-backed dataset source.
func NewS3Source(cfg *config.AWSConfig, bucket, key string) (*S3Source, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Source{client: s3.New(sess), bucket: bucket, key: key}, nil
}

// Fetch downloads the dataset object.
func (s *S3Source) Fetch(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return out.Body, nil
}

// OpenSource resolves a dataset reference: an s3://bucket/key URL becomes an
// S3 source, anything else is a local path. An empty reference falls back to
// the configured bucket and key.
func OpenSource(cfg *config.AWSConfig, ref string) (outbound.DatasetSource, error) {
	if ref == "" {
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("no dataset reference and no configured s3 bucket")
		}
		return NewS3Source(cfg, cfg.S3Bucket, cfg.DatasetKey)
	}

	if strings.HasPrefix(ref, "s3://") {
		rest := strings.TrimPrefix(ref, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("malformed s3 reference %q", ref)
		}
		return NewS3Source(cfg, bucket, key)
	}

	return NewFileSource(ref), nil
}
