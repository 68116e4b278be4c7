package usecase

import (
	"context"
	"io"
	"time"

	"clipforge/internal/domain/ports/adapter"
)

// Compile-time check
var _ ArtifactPublisher = (*publisherUC)(nil)

// Signed URL tiers. Download links are short-lived; preview/share links get
// a week. Links are minted per request and never stored, so read access
// lapses by itself at TTL expiry.
const (
	downloadURLTTL = 24 * time.Hour
	previewURLTTL  = 7 * 24 * time.Hour
)

// ArtifactPublisher owns the blob key namespace and the URL tiers.
type ArtifactPublisher interface {
	Publish(ctx context.Context, ownerID, jobID, name, contentType string, body io.Reader) (string, error)
	DownloadURL(ctx context.Context, key string) (string, error)
	PreviewURL(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

type publisherUC struct {
	store adapter.BlobStore
}

func NewArtifactPublisher(store adapter.BlobStore) *publisherUC {
	return &publisherUC{store: store}
}

// ArtifactKey namespaces artifacts as {ownerID}/{jobID}/{name}; owners and
// jobs can never collide with each other.
func ArtifactKey(ownerID, jobID, name string) string {
	return ownerID + "/" + jobID + "/" + name
}

func (p *publisherUC) Publish(ctx context.Context, ownerID, jobID, name, contentType string, body io.Reader) (string, error) {
	key := ArtifactKey(ownerID, jobID, name)
	if err := p.store.Put(ctx, key, contentType, body); err != nil {
		return "", err
	}
	return key, nil
}

func (p *publisherUC) DownloadURL(ctx context.Context, key string) (string, error) {
	return p.store.SignedURL(ctx, key, downloadURLTTL)
}

func (p *publisherUC) PreviewURL(ctx context.Context, key string) (string, error) {
	return p.store.SignedURL(ctx, key, previewURLTTL)
}

func (p *publisherUC) Remove(ctx context.Context, key string) error {
	return p.store.Delete(ctx, key)
}
