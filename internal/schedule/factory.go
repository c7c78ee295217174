package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/OpenNSW/duty/internal/config"
	"github.com/OpenNSW/duty/internal/schedule/drivers"
)

// ErrUnsupportedSource is returned for an unknown storage type
var ErrUnsupportedSource = errors.New("unsupported storage type")

// NewSourceFromConfig creates a schedule source based on the provided configuration
func NewSourceFromConfig(ctx context.Context, cfg config.StorageConfig) (Source, error) {
	switch cfg.Type {
	case "local":
		slog.Info("initializing local schedule storage", "dir", cfg.LocalBaseDir)
		return drivers.NewLocalFSSource(cfg.LocalBaseDir)
	case "s3":
		slog.Info("initializing S3 schedule storage", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)

		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.S3Region),
		}

		if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
			creds := credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")
			opts = append(opts, awsconfig.WithCredentialsProvider(creds))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			}
			o.UsePathStyle = true
		})

		return drivers.NewS3Source(client, cfg.S3Bucket, ""), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, cfg.Type)
	}
}
