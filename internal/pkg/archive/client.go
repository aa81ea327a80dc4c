// Package archive keeps a copy of every accepted webhook payload in an
// S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/RevenueLedger/internal/pkg/config"
	"github.com/ManuelReschke/RevenueLedger/internal/pkg/webhook"
)

// objectAPI is the part of *s3.Client the archive uses.
type objectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client wraps the S3 client with archive-specific functionality
type Client struct {
	s3     objectAPI
	config config.ArchiveConfig
	dev    bool
}

// NewClient creates a new S3 archive client and checks the bucket.
func NewClient(ctx context.Context, cfg config.ArchiveConfig, dev bool) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("S3 archive is disabled")
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// S3-compatible services (MinIO, B2) want path-style URLs
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	client := newClient(s3Client, cfg, dev)
	if err := client.testConnection(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[Archive] Successfully initialized S3 client for bucket: %s", cfg.BucketName)
	return client, nil
}

func newClient(api objectAPI, cfg config.ArchiveConfig, dev bool) *Client {
	return &Client{s3: api, config: cfg, dev: dev}
}

// testConnection checks that the bucket exists, creating it outside production
func (c *Client) testConnection(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.config.BucketName),
	})
	if err == nil {
		return nil
	}
	if !c.dev {
		return fmt.Errorf("bucket %s not accessible: %w", c.config.BucketName, err)
	}

	log.Warnf("[Archive] Bucket %s not found, attempting to create it", c.config.BucketName)
	input := &s3.CreateBucketInput{
		Bucket: aws.String(c.config.BucketName),
	}
	// Outside us-east-1 AWS needs a location constraint; S3-compatible endpoints don't.
	if c.config.EndpointURL == "" && c.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.config.Region),
		}
	}
	if _, err := c.s3.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.config.BucketName, err)
	}
	log.Infof("[Archive] Successfully created bucket: %s", c.config.BucketName)
	return nil
}

// ObjectKey returns the archive key for an event.
// Format: webhooks/YYYY/MM/DD/<event_id>.json, dated by receipt.
func ObjectKey(ev *webhook.VerifiedEvent) string {
	t := ev.Event.ReceivedAt.UTC()
	return fmt.Sprintf("webhooks/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), url.PathEscape(ev.Event.EventID))
}

// EventRecorded stores the verbatim payload under the event id. Repeated
// calls for one event overwrite the same object.
func (c *Client) EventRecorded(ctx context.Context, ev *webhook.VerifiedEvent) error {
	key := ObjectKey(ev)
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(ev.Raw),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(ev.Raw))),
		Metadata: map[string]string{
			"event-id":     ev.Event.EventID,
			"event-type":   ev.Event.EventType,
			"payload-hash": ev.Event.RawPayloadHash,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", ev.Event.EventID, err)
	}
	log.Debugf("[Archive] stored s3://%s/%s", c.config.BucketName, key)
	return nil
}
