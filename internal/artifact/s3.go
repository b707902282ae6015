package artifact

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const artifactContentType = "application/json"

// S3Store keeps artifacts in an S3-compatible bucket. The encoder
// object is put before the model object, so a listed model key always
// has its companion encoder in place.
type S3Store struct {
	client *minio.Client
	bucket string
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: create s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("artifact: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("artifact: create bucket: %w", err)
		}
	}

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Publish(version string, modelBlob, encoderBlob []byte) (string, error) {
	ctx := context.Background()
	modelKey := ModelKey(version)
	encoderKey := EncoderKey(modelKey)

	if err := s.put(ctx, encoderKey, encoderBlob); err != nil {
		return "", err
	}
	if err := s.put(ctx, modelKey, modelBlob); err != nil {
		_ = s.client.RemoveObject(ctx, s.bucket, encoderKey, minio.RemoveObjectOptions{})
		return "", err
	}
	return modelKey, nil
}

func (s *S3Store) Load(modelKey string) ([]byte, []byte, error) {
	ctx := context.Background()
	modelBlob, err := s.get(ctx, modelKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	encoderBlob, err := s.get(ctx, EncoderKey(modelKey))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrArtifactLoad, err)
	}
	return modelBlob, encoderBlob, nil
}

func (s *S3Store) put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: artifactContentType})
	if err != nil {
		return fmt.Errorf("artifact: upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(object); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
