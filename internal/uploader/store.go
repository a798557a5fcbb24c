package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// objectStore is the narrow object-storage contract the Uploader drives.
// It exists so tests can swap the real S3 client for an in-memory fake
// without reaching for an S3-compatible test server.
type objectStore interface {
	// HeadObject returns the stored object's CRC32C checksum (base64,
	// AWS's own encoding) and whether it exists.
	HeadObject(ctx context.Context, bucket, key string) (crc32cBase64 string, exists bool, err error)
	// PutObject uploads body, asking the store to compute and record a
	// CRC32C checksum alongside it.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// S3Store is the production objectStore backed by AWS SDK v2, wired the
// same way the pack's own S3 client is: a custom HTTP transport sized
// for the upload worker pool, path-style addressing for S3-compatible
// endpoints, and static credentials when an access key ID is set.
type S3Store struct {
	client *s3.Client
}

// S3Config configures the production object store.
type S3Config struct {
	Endpoint        string // non-empty selects an S3-compatible endpoint (e.g. R2); empty uses AWS defaults
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PoolSize        int
}

// NewS3Store builds an S3Store sized for PoolSize concurrent uploaders.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        poolSize + 50,
			MaxIdleConnsPerHost: poolSize + 50,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: 5 * time.Minute,
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	if cfg.Endpoint != "" {
		resolver := s3.EndpointResolverFromURL(cfg.Endpoint)
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = true
			o.EndpointResolverV2 = resolver
		})
		return &S3Store{client: client}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Store{client: s3.NewFromConfig(awsCfg)}, nil
}

func (s *S3Store) HeadObject(ctx context.Context, bucket, key string) (string, bool, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "404") {
			return "", false, nil
		}
		return "", false, classify(err)
	}

	if out.ChecksumCRC32C == nil {
		return "", true, nil
	}
	return *out.ChecksumCRC32C, true, nil
}

func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		Body:              body,
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

// loggerOrDefault is a small helper shared by the package's constructors.
func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
