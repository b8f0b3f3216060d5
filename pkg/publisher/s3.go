package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/praetorian-inc/securelink/pkg/config"
)

// S3Presigner publishes resources as presigned S3 GET URLs. The resource
// path minus the strip prefix is the object key.
type S3Presigner struct {
	presign     *s3.PresignClient
	bucket      string
	stripPrefix string
	expires     time.Duration
}

// NewS3 builds a presigner from configuration. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, cfg config.S3Config, expires time.Duration) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	if expires <= 0 {
		expires = DefaultTimeout
	}

	return &S3Presigner{
		presign:     s3.NewPresignClient(client),
		bucket:      cfg.Bucket,
		stripPrefix: cfg.StripPrefix,
		expires:     expires,
	}, nil
}

// Name implements Backend.
func (p *S3Presigner) Name() string { return "s3" }

// Publish presigns a GET for the object behind resource.
func (p *S3Presigner) Publish(ctx context.Context, resource string) (string, error) {
	key, err := objectKey(resource, p.stripPrefix)
	if err != nil {
		return "", err
	}

	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expires))
	if err != nil {
		return "", fmt.Errorf("s3: presigning %s: %w", key, err)
	}
	return req.URL, nil
}
