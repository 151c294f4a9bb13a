package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const markdownContentType = "text/markdown; charset=utf-8"

// S3Config 对应 ARCHIVE_S3_* 环境变量。
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Archive keeps exported articles in an S3-compatible bucket (MinIO, R2, AWS).
// The bucket is created on the first successful write; a failed check is retried by the
// next Put.
type S3Archive struct {
	client *minio.Client
	bucket string
	region string

	mu    sync.Mutex
	ready bool
}

func NewS3Archive(cfg S3Config) (*S3Archive, error) {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"endpoint", cfg.Endpoint},
		{"access key", cfg.AccessKey},
		{"secret key", cfg.SecretKey},
		{"bucket", cfg.Bucket},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("s3 archive: %s required", strings.Join(missing, ", "))
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 archive client: %w", err)
	}
	return &S3Archive{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: region}, nil
}

// ensureBucket checks (and if needed creates) the bucket with the caller's ctx. Only a
// successful check is remembered.
func (s *S3Archive) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		// 并发的另一个实例可能刚建好
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *S3Archive) Put(ctx context.Context, key string, doc []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(doc), int64(len(doc)),
		minio.PutObjectOptions{ContentType: markdownContentType})
	return err
}

// Get reads one document. A missing key or bucket is ErrNotFound.
func (s *S3Archive) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(err)
	}
	defer obj.Close()
	// GetObject is lazy; Stat surfaces NoSuchKey before any body is read.
	if _, err := obj.Stat(); err != nil {
		return nil, notFound(err)
	}
	doc, err := io.ReadAll(obj)
	if err != nil {
		return nil, notFound(err)
	}
	return doc, nil
}

// List returns the keys under prefix in lexical order. A missing bucket lists nothing.
func (s *S3Archive) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	opts := minio.ListObjectsOptions{Prefix: prefix, Recursive: true}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			if errors.Is(notFound(obj.Err), ErrNotFound) {
				return nil, nil
			}
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

func notFound(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrNotFound
	}
	return err
}
