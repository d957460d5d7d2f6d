package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// listPageSize mirrors the page size the reference stack (opentofu-opentofu's
// S3 state backend) requests per ListObjectsV2 call.
const listPageSize = 1000

// S3Client is the production Client backed by an S3-compatible bucket.
type S3Client struct {
	api    *s3.Client
	bucket string
	logger *slog.Logger
}

var _ Client = (*S3Client)(nil)

// NewS3Client wraps an already-configured aws.Config. Credential injection
// happens upstream via LoadAWSConfig so this constructor never reaches for
// ambient credentials itself.
func NewS3Client(cfg aws.Config, bucket string, logger *slog.Logger) *S3Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &S3Client{
		api:    s3.NewFromConfig(cfg),
		bucket: bucket,
		logger: logger,
	}
}

func (c *S3Client) List(ctx context.Context, prefix string) ([]Object, error) {
	params := &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(listPageSize),
	}

	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(c.api, params)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore: list %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:  aws.ToString(obj.Key),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	return objects, nil
}

func (c *S3Client) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("objectstore: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("objectstore: upload %s -> %s: %w", localPath, key, err)
	}

	return nil
}

func (c *S3Client) Download(ctx context.Context, key, localPath string) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: download %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("objectstore: mkdir for %s: %w", localPath, err)
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("objectstore: create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("objectstore: write %s: %w", localPath, err)
	}

	return nil
}

func (c *S3Client) Copy(ctx context.Context, srcKey, dstKey string) error {
	source := fmt.Sprintf("%s/%s", c.bucket, srcKey)

	_, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(source),
	})
	if err != nil {
		return fmt.Errorf("objectstore: copy %s -> %s: %w", srcKey, dstKey, err)
	}

	return nil
}

func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil
		}

		// DeleteObject has no modeled errors, so a NoSuchKey reply arrives
		// as a generic API error carrying only its code.
		var apiErr interface{ ErrorCode() string }
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil
		}

		return fmt.Errorf("objectstore: delete %s: %w", key, err)
	}

	return nil
}
