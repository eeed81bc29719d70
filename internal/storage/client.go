package storage

import (
	"context"
	"fmt"

	"github.com/afthar/transfer-agent/internal/event"
)

// Client defines the interface the transfer engine uses to move
// objects. Whole objects travel as byte slices; chunked transfer is
// out of scope.
type Client interface {
	Download(ctx context.Context, provider event.Provider, bucket, key string) ([]byte, error)
	Upload(ctx context.Context, provider event.Provider, bucket, key string, data []byte) error
}

// Backend implements object access against a single provider endpoint
type Backend interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Upload(ctx context.Context, bucket, key string, data []byte) error
}

// Config contains backend configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
}

// Router dispatches storage operations to the backend registered for
// each provider. Registration happens during wiring, before any
// transfer runs.
type Router struct {
	backends map[event.Provider]Backend
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{backends: make(map[event.Provider]Backend)}
}

// Register binds a backend to a provider name
func (r *Router) Register(provider event.Provider, backend Backend) {
	r.backends[provider] = backend
}

func (r *Router) backend(provider event.Provider) (Backend, error) {
	b, ok := r.backends[provider]
	if !ok {
		return nil, fmt.Errorf("no backend registered for provider %q", provider)
	}
	return b, nil
}

// Download fetches an object through the provider's backend
func (r *Router) Download(ctx context.Context, provider event.Provider, bucket, key string) ([]byte, error) {
	b, err := r.backend(provider)
	if err != nil {
		return nil, err
	}
	return b.Download(ctx, bucket, key)
}

// Upload stores an object through the provider's backend
func (r *Router) Upload(ctx context.Context, provider event.Provider, bucket, key string, data []byte) error {
	b, err := r.backend(provider)
	if err != nil {
		return err
	}
	return b.Upload(ctx, bucket, key, data)
}
