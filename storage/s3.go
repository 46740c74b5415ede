package storage

import (
	"bytes"
	"context"
	"fmt"

	"slr-manager/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client erstellt einen S3-Client für einen S3-kompatiblen Endpunkt.
func NewS3Client(ctx context.Context, endpoint, region, key, secret string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// S3Store lädt Berichte in einen Bucket hoch.
type S3Store struct {
	Client   *s3.Client
	Bucket   string
	Endpoint string
}

// NewS3Store erstellt einen S3Store aus der Konfiguration.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	client, err := NewS3Client(ctx, cfg.URL, cfg.Region, cfg.Key, cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3Store{Client: client, Bucket: cfg.Bucket, Endpoint: cfg.URL}, nil
}

// Upload lädt data unter key hoch und gibt den Link zurück.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", s.Endpoint, s.Bucket, key), nil
}
