package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/session"
)

var errNoSuchKey = errors.New("no such key")

// objectClient is the subset of S3 operations the store needs.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
	Put(ctx context.Context, bucket, object, contentType string, data []byte) error
	Get(ctx context.Context, bucket, object string) ([]byte, error)
}

// Options configures a MinIO or S3-compatible session store.
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// SessionStore keeps sessions as JSON objects <bucket>/<prefix>/<id>.json.
type SessionStore struct {
	client objectClient
	bucket string
	region string
	prefix string

	mu          sync.Mutex
	bucketReady bool
}

func NewSessionStore(opts Options) (*SessionStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("NewSessionStore: create minio client: %w", err)
	}
	return newSessionStore(&minioClient{c: client}, opts), nil
}

func newSessionStore(client objectClient, opts Options) *SessionStore {
	return &SessionStore{
		client: client,
		bucket: opts.Bucket,
		region: opts.Region,
		prefix: opts.Prefix,
	}
}

// ensureBucket creates the bucket on first use. A failed attempt is retried on the next save.
func (s *SessionStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bucketReady {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, s.region); err != nil {
			return fmt.Errorf("create bucket %q: %w", s.bucket, err)
		}
	}
	s.bucketReady = true
	return nil
}

func (s *SessionStore) objectName(id string) string {
	return path.Join(s.prefix, id+".json")
}

func (s *SessionStore) Save(ctx context.Context, id string, sess *domain.AnalysisSession) error {
	if !session.ValidSessionID(id) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("SessionStore.Save: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("SessionStore.Save: encoding session: %w", err)
	}

	if err := s.client.Put(ctx, s.bucket, s.objectName(id), "application/json", data); err != nil {
		return fmt.Errorf("SessionStore.Save: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*domain.AnalysisSession, error) {
	if !session.ValidSessionID(id) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}

	data, err := s.client.Get(ctx, s.bucket, s.objectName(id))
	if errors.Is(err, errNoSuchKey) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("SessionStore.Load: %w", err)
	}

	var sess domain.AnalysisSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("SessionStore.Load: decoding session: %w", err)
	}
	return &sess, nil
}

type minioClient struct {
	c *minio.Client
}

func (m *minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.c.BucketExists(ctx, bucket)
}

func (m *minioClient) MakeBucket(ctx context.Context, bucket, region string) error {
	return m.c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func (m *minioClient) Put(ctx context.Context, bucket, object, contentType string, data []byte) error {
	_, err := m.c.PutObject(ctx, bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", object, err)
	}
	return nil
}

func (m *minioClient) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	obj, err := m.c.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapGetError(object, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapGetError(object, err)
	}
	return data, nil
}

func mapGetError(object string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errNoSuchKey
	}
	return fmt.Errorf("get object %q: %w", object, err)
}
