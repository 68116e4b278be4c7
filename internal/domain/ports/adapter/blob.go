package adapter

import (
	"context"
	"io"
	"time"
)

// BlobStore is the durable artifact backend. Signed URLs are minted fresh
// on every call and never cached, so read access lapses at TTL expiry.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}
