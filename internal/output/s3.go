package output

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// S3Options configure the uploader.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// PutObjectAPI is the slice of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies run files to S3 under a partitioned key.
type Uploader struct {
	api    PutObjectAPI
	opts   S3Options
	logger *zap.Logger
}

// NewS3Uploader builds an S3 client from the default AWS chain, with static
// credentials when both keys are set.
func NewS3Uploader(ctx context.Context, opts S3Options, logger *zap.Logger) (*Uploader, error) {
	if opts.Bucket == "" {
		return nil, ErrS3Disabled
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})

	return NewUploader(client, opts, logger), nil
}

// NewUploader wraps an existing client.
func NewUploader(api PutObjectAPI, opts S3Options, logger *zap.Logger) *Uploader {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &Uploader{api: api, opts: opts, logger: logger}
}

// Key returns the object key for a run file.
func (u *Uploader) Key(ticker string, day time.Time, runID, file string) string {
	return path.Join(
		strings.Trim(u.opts.Prefix, "/"),
		fmt.Sprintf("ticker=%s", strings.ToUpper(ticker)),
		fmt.Sprintf("date=%s", day.Format("2006-01-02")),
		runID,
		filepath.Base(file),
	)
}

// Upload sends each file and returns the keys written.
func (u *Uploader) Upload(ctx context.Context, ticker string, day time.Time, runID string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key := u.Key(ticker, day, runID, f)
		if err := u.put(ctx, key, f); err != nil {
			return keys, err
		}
		u.logger.Debug("Uploaded file",
			zap.String("bucket", u.opts.Bucket),
			zap.String("key", key),
		)
		keys = append(keys, key)
	}
	return keys, nil
}

func (u *Uploader) put(ctx context.Context, key, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(file)),
	}

	ctx, cancel := context.WithTimeout(ctx, u.opts.Timeout)
	defer cancel()
	if _, err := u.api.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func contentType(file string) string {
	switch {
	case strings.HasSuffix(file, ".csv"):
		return "text/csv"
	case strings.HasSuffix(file, ".json"):
		return "application/json"
	case strings.HasSuffix(file, ".zst"):
		return "application/zstd"
	}
	return "application/octet-stream"
}
