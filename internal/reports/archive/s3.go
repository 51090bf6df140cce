package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ErrDisabled is returned when reports are archived without a configured bucket
var ErrDisabled = errors.New("report archive is disabled")

// Config configures the S3 report archive
type Config struct {
	Enabled          bool   `json:"enabled"`
	Bucket           string `json:"bucket"`
	Region           string `json:"region"`
	Prefix           string `json:"prefix"`
	URLExpirySeconds int    `json:"url_expiry_seconds"`
}

// DefaultConfig returns default archive configuration
func DefaultConfig() Config {
	return Config{
		Region:           "us-east-1",
		Prefix:           "valuations",
		URLExpirySeconds: 900,
	}
}

// ObjectPutter is the subset of the S3 client used to store reports
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// URLPresigner is the subset of the S3 presign client used for download links
type URLPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Object describes a stored report
type Object struct {
	Bucket       string     `json:"bucket"`
	Key          string     `json:"key"`
	ContentType  string     `json:"content_type"`
	Size         int        `json:"size"`
	ETag         string     `json:"etag,omitempty"`
	URL          string     `json:"url,omitempty"`
	URLExpiresAt *time.Time `json:"url_expires_at,omitempty"`
}

// S3Archive stores rendered valuation reports in an S3 bucket
type S3Archive struct {
	client    ObjectPutter
	presigner URLPresigner
	bucket    string
	prefix    string
	expiry    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewS3Archive creates a new S3 archive. presigner may be nil, in which case
// stored objects carry no download URL.
func NewS3Archive(client ObjectPutter, presigner URLPresigner, bucket, prefix string, expiry time.Duration, logger *zap.Logger) *S3Archive {
	return &S3Archive{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
		prefix:    strings.Trim(prefix, "/"),
		expiry:    expiry,
		logger:    logger,
		now:       time.Now,
	}
}

// NewFromConfig builds an archive from the default AWS credential chain
func NewFromConfig(ctx context.Context, cfg Config, logger *zap.Logger) (*S3Archive, error) {
	if !cfg.Enabled || cfg.Bucket == "" {
		return nil, ErrDisabled
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	expiry := time.Duration(cfg.URLExpirySeconds) * time.Second
	return NewS3Archive(client, s3.NewPresignClient(client), cfg.Bucket, cfg.Prefix, expiry, logger), nil
}

// Key joins parts under the archive prefix
func (a *S3Archive) Key(parts ...string) string {
	return path.Join(append([]string{a.prefix}, parts...)...)
}

// Put uploads data under key and, when a presigner is configured, returns
// a time-limited download URL with the object
func (a *S3Archive) Put(ctx context.Context, key, contentType string, data []byte) (*Object, error) {
	out, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload report %s: %w", key, err)
	}

	obj := &Object{
		Bucket:      a.bucket,
		Key:         key,
		ContentType: contentType,
		Size:        len(data),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}

	if a.presigner != nil && a.expiry > 0 {
		req, err := a.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(a.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(a.expiry))
		if err != nil {
			// The upload succeeded; a missing link is not fatal
			a.logger.Warn("Failed to presign report URL", zap.String("key", key), zap.Error(err))
		} else {
			expires := a.now().Add(a.expiry)
			obj.URL = req.URL
			obj.URLExpiresAt = &expires
		}
	}

	a.logger.Info("Archived report",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("size", obj.Size))
	return obj, nil
}
