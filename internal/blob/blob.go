package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	// ErrInvalidConfig reports missing required storage configuration.
	ErrInvalidConfig = errors.New("invalid blob storage config")

	// ErrUpload wraps any transport failure while putting an object.
	ErrUpload = errors.New("blob upload failed")
)

// Uploader stores a payload under folder/filename and returns a URL the
// object can later be fetched from. Uploading the same folder/filename
// again replaces the previous content. Exactly one attempt is made per
// call; retrying is the caller's decision.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder, filename string) (string, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Bucket    string
	AccessKey string
	SecretKey string

	// Endpoint is a custom S3 endpoint URL (for MinIO or other
	// S3-compatible services).
	Endpoint string
	Region   string

	// PublicURL is a CDN or public URL prefix; when set, returned URLs
	// use it instead of the S3 URL.
	PublicURL string

	// PathStyle enables path-style URLs (required for MinIO).
	PathStyle bool
}

const defaultRegion = "us-east-1"

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = defaultRegion
	}
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}

// S3Uploader implements Uploader against S3-compatible object storage.
type S3Uploader struct {
	client *s3.Client
	cfg    Config
}

func New(cfg Config) (*S3Uploader, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)
		},
	}

	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3Uploader{
		client: s3.New(s3.Options{}, opts...),
		cfg:    cfg,
	}, nil
}

// Upload puts data at folder/filename with public-read ACL and returns
// the object's public URL.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, folder, filename string) (string, error) {
	key := objectKey(folder, filename)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           types.ObjectCannedACLPublicRead,
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrUpload, key, err)
	}

	return u.publicURL(key), nil
}

func (u *S3Uploader) publicURL(key string) string {
	if u.cfg.PublicURL != "" {
		return strings.TrimSuffix(u.cfg.PublicURL, "/") + "/" + key
	}

	if u.cfg.Endpoint != "" {
		endpoint := strings.TrimSuffix(u.cfg.Endpoint, "/")
		if u.cfg.PathStyle {
			return fmt.Sprintf("%s/%s/%s", endpoint, u.cfg.Bucket, key)
		}
		return fmt.Sprintf("%s/%s", endpoint, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}

func objectKey(folder, filename string) string {
	return sanitizePathSegment(folder) + "/" + sanitizePathSegment(filename)
}

var pathSegmentRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizePathSegment strips characters that could escape the intended
// object key, so caller-supplied filenames cannot traverse paths.
func sanitizePathSegment(segment string) string {
	segment = strings.Trim(segment, " /\\")
	segment = strings.ReplaceAll(segment, "..", "")
	segment = pathSegmentRegex.ReplaceAllString(segment, "_")
	return url.PathEscape(segment)
}

var _ Uploader = (*S3Uploader)(nil)
