package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gunta/skypilot/internal/config"
	"github.com/gunta/skypilot/internal/model"
)

// AssetMirror copies downloaded assets to object storage
type AssetMirror interface {
	MirrorFile(ctx context.Context, videoID string, variant model.AssetVariant, path string) (string, error)
	DeleteVideo(ctx context.Context, videoID string, filenames []string) error
}

var variantContentTypes = map[model.AssetVariant]string{
	model.VariantVideo:       "video/mp4",
	model.VariantThumbnail:   "image/jpeg",
	model.VariantSpritesheet: "image/png",
}

// R2Client implements AssetMirror for Cloudflare R2
type R2Client struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
}

// NewR2Client creates a new R2 storage client
func NewR2Client(cfg *config.R2Config) (*R2Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("R2 configuration incomplete")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: endpoint,
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithEndpointResolverWithOptions(r2Resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &R2Client{
		s3Client:   s3.NewFromConfig(awsCfg),
		bucketName: cfg.BucketName,
		publicURL:  cfg.PublicURL,
	}, nil
}

// ObjectKey is where an asset file lives in the bucket.
func ObjectKey(videoID, filename string) string {
	return fmt.Sprintf("videos/%s/%s", videoID, filename)
}

// MirrorFile uploads a downloaded asset and returns its public URL
func (c *R2Client) MirrorFile(ctx context.Context, videoID string, variant model.AssetVariant, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()

	key := ObjectKey(videoID, filepath.Base(path))
	if err := c.upload(ctx, key, f, variantContentTypes[variant]); err != nil {
		return "", err
	}
	return c.PublicURL(key), nil
}

func (c *R2Client) upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

// DeleteVideo removes mirrored assets of a deleted video
func (c *R2Client) DeleteVideo(ctx context.Context, videoID string, filenames []string) error {
	for _, name := range filenames {
		input := &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucketName),
			Key:    aws.String(ObjectKey(videoID, name)),
		}
		if _, err := c.s3Client.DeleteObject(ctx, input); err != nil {
			return fmt.Errorf("failed to delete from R2: %w", err)
		}
	}
	return nil
}

// PublicURL returns the public CDN URL for a key
func (c *R2Client) PublicURL(key string) string {
	if c.publicURL != "" {
		return fmt.Sprintf("%s/%s", c.publicURL, key)
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s", c.bucketName, key)
}

// IsConfigured returns true if the client has valid configuration
func (c *R2Client) IsConfigured() bool {
	return c != nil && c.s3Client != nil && c.bucketName != ""
}
