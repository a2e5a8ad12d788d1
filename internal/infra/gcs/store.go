package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/finance-intake/internal/domain"
	"github.com/dvloznov/finance-intake/internal/session"
)

// objectBucket is the subset of bucket operations the store needs.
type objectBucket interface {
	Write(ctx context.Context, object, contentType string, data []byte) error
	Read(ctx context.Context, object string) ([]byte, error)
}

// SessionStore keeps sessions as JSON objects gs://<bucket>/<prefix>/<id>.json.
type SessionStore struct {
	client *storage.Client
	bucket objectBucket
	prefix string
}

// NewSessionStore creates a storage client using Application Default Credentials,
// or the service account key in credentialsFile when set.
func NewSessionStore(ctx context.Context, bucketName, prefix, credentialsFile string) (*SessionStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewSessionStore: create storage client: %w", err)
	}

	return &SessionStore{
		client: client,
		bucket: &bucketHandle{h: client.Bucket(bucketName)},
		prefix: prefix,
	}, nil
}

func newSessionStoreWithBucket(b objectBucket, prefix string) *SessionStore {
	return &SessionStore{bucket: b, prefix: prefix}
}

// Close releases the storage client.
func (s *SessionStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *SessionStore) objectName(id string) string {
	return path.Join(s.prefix, id+".json")
}

func (s *SessionStore) Save(ctx context.Context, id string, sess *domain.AnalysisSession) error {
	if !session.ValidSessionID(id) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("SessionStore.Save: encoding session: %w", err)
	}

	if err := s.bucket.Write(ctx, s.objectName(id), "application/json", data); err != nil {
		return fmt.Errorf("SessionStore.Save: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (*domain.AnalysisSession, error) {
	if !session.ValidSessionID(id) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSessionID, id)
	}

	data, err := s.bucket.Read(ctx, s.objectName(id))
	if errors.Is(err, storage.ErrObjectNotExist) {
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

type bucketHandle struct {
	h *storage.BucketHandle
}

func (b *bucketHandle) Write(ctx context.Context, object, contentType string, data []byte) error {
	w := b.h.Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy object to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

func (b *bucketHandle) Read(ctx context.Context, object string) ([]byte, error) {
	r, err := b.h.Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}
