package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func initializeS3Client(cfg S3ClientConfig) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) { // nolint:staticcheck
		if cfg.Endpoint != "" {
			return aws.Endpoint{ // nolint:staticcheck
				PartitionID:       "aws",
				URL:               cfg.Endpoint,
				SigningRegion:     cfg.Region,
				HostnameImmutable: true, // Important for MinIO
			}, nil
		}
		// fallback to default AWS endpoint resolution
		return aws.Endpoint{}, &aws.EndpointNotFoundError{} // nolint:staticcheck
	})

	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.Region),
		aws_config.WithEndpointResolverWithOptions(resolver), // nolint:staticcheck
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Use path-style addressing (needed for MinIO)
	})

	return client, nil
}

type S3ObjectStore struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
	cfg        S3ClientConfig
}

var _ ObjectStore = (*S3ObjectStore)(nil)

func NewS3ObjectStore(cfg S3ClientConfig) (*S3ObjectStore, error) {
	client, err := initializeS3Client(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	return &S3ObjectStore{
		client:     client,
		downloader: manager.NewDownloader(client),
		uploader:   manager.NewUploader(client),
		cfg:        cfg,
	}, nil
}

func (s *S3ObjectStore) CreateBucket(ctx context.Context, bucket string) error {
	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var existErr *types.BucketAlreadyExists
		var ownedErr *types.BucketAlreadyOwnedByYou
		if errors.As(err, &existErr) || errors.As(err, &ownedErr) {
			slog.Info("bucket already exists", "bucket", bucket)
			return nil
		}

		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	slog.Info("bucket created successfully", "bucket", bucket)

	return nil
}

func (s *S3ObjectStore) PutObject(ctx context.Context, bucket, key string, data io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   data,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to s3://%s/%s: %w", bucket, key, err)
	}
	slog.Info("object uploaded successfully", "bucket", bucket, "key", key)

	return nil
}

func (s *S3ObjectStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	headObj, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object size: %w", err)
	}

	buffer := manager.NewWriteAtBuffer(make([]byte, *headObj.ContentLength))

	_, err = s.downloader.Download(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download object s3://%s/%s: %w", bucket, key, err)
	}

	return buffer.Bytes(), nil
}

func (s *S3ObjectStore) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object s3://%s/%s: %w", bucket, key, err)
	}

	return nil
}

func (s *S3ObjectStore) ObjectURL(bucket, key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.cfg.Region, key)
}
