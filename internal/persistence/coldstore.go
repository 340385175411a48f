package persistence

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ColdStore uploads objects to, and fetches them from, an S3 bucket under
// a key prefix. It stores whatever bytes are passed to Archive; it does
// not itself select, export or delete rows from the sqlite databases.
type ColdStore struct {
	uploader *manager.Uploader
	client   *s3.Client
	bucket   string
	prefix   string
}

// NewColdStore constructs a ColdStore against the given bucket/region. An
// empty bucket means archival is disabled; callers should check Enabled
// before calling Archive.
func NewColdStore(ctx context.Context, bucket, region, prefix string) (*ColdStore, error) {
	if bucket == "" {
		return &ColdStore{}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("coldstore: failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &ColdStore{
		uploader: manager.NewUploader(client),
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
	}, nil
}

// Enabled reports whether archival is configured.
func (c *ColdStore) Enabled() bool { return c.bucket != "" }

// Archive uploads data under key, prefixed with the store's configured
// namespace (e.g. "sentinel-okx/bars/BTC-USDT/2026-07-29.json").
func (c *ColdStore) Archive(ctx context.Context, key string, data []byte) error {
	if !c.Enabled() {
		return nil
	}
	fullKey := c.prefix + "/" + key
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(fullKey),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("coldstore: upload %s failed: %w", fullKey, err)
	}
	return nil
}

// Fetch retrieves a previously archived object.
func (c *ColdStore) Fetch(ctx context.Context, key string) ([]byte, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("coldstore: archival disabled")
	}
	fullKey := c.prefix + "/" + key
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(fullKey)})
	if err != nil {
		return nil, fmt.Errorf("coldstore: fetch %s failed: %w", fullKey, err)
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("coldstore: read %s failed: %w", fullKey, err)
	}
	return buf.Bytes(), nil
}
