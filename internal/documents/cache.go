package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const renderTTL = 24 * time.Hour

// RenderCache keeps rendered PDFs in Redis. The key embeds the document's
// updated-at timestamp, so any mutation naturally invalidates the cached
// artifact without explicit eviction.
type RenderCache struct {
	client *redis.Client
}

func NewRenderCache(client *redis.Client) *RenderCache {
	return &RenderCache{client: client}
}

func renderKey(kind string, id int64, updatedAt time.Time) string {
	return fmt.Sprintf("documents:pdf:%s:%d:%d", kind, id, updatedAt.UnixNano())
}

func (c *RenderCache) Get(ctx context.Context, kind string, id int64, updatedAt time.Time) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, renderKey(kind, id, updatedAt)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *RenderCache) Set(ctx context.Context, kind string, id int64, updatedAt time.Time, pdf []byte) {
	if c == nil || c.client == nil {
		return
	}
	// Cache misses are harmless; a failed write only costs a re-render.
	_ = c.client.Set(ctx, renderKey(kind, id, updatedAt), pdf, renderTTL).Err()
}
