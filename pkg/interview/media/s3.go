package media

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3Config holds the credentials and bucket for S3-backed storage.
type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Store keeps recordings in an S3 bucket under recordings/<token>/ keys,
// encrypted at rest with SSE-S3. Downloads are presigned GET URLs.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds a client from static credentials.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, r io.Reader, info PutInfo) (*Locator, error) {
	key := fmt.Sprintf("recordings/%s/%s_%s%s",
		info.SessionToken,
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString(),
		safeExt(info.Filename))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 r,
		ContentType:          aws.String(info.ContentType),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("upload recording: %w", err)
	}
	return &Locator{Storage: StorageS3, ObjectKey: key}, nil
}

func (s *S3Store) DownloadFor(ctx context.Context, loc Locator, expiry time.Duration) (*Download, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(loc.ObjectKey),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("presign download: %w", err)
	}
	return &Download{URL: req.URL}, nil
}

func (s *S3Store) Delete(ctx context.Context, loc Locator) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(loc.ObjectKey),
	})
	if err != nil {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}
