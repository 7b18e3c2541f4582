package repository

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/mylo-ta-api/internal/models"
	appErrors "github.com/noah-isme/mylo-ta-api/pkg/errors"
)

const pendingAttachmentPrefix = "voice:pending:"

// AttachmentCacheRepository tracks knowledge base documents that still need to be attached to an agent.
type AttachmentCacheRepository struct {
	cache *CacheRepository
	ttl   time.Duration
}

// NewAttachmentCacheRepository constructs the repository.
func NewAttachmentCacheRepository(cache *CacheRepository, ttl time.Duration) *AttachmentCacheRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AttachmentCacheRepository{cache: cache, ttl: ttl}
}

func pendingKey(agentID, documentName string) string {
	return pendingAttachmentPrefix + agentID + ":" + documentName
}

// Save records a pending attachment. Newer records for the same document name replace older ones.
func (r *AttachmentCacheRepository) Save(ctx context.Context, pending models.PendingAttachment) error {
	if pending.RecordedAt.IsZero() {
		pending.RecordedAt = time.Now().UTC()
	}
	return r.cache.Set(ctx, pendingKey(pending.AgentID, pending.DocumentName), pending, r.ttl)
}

// ListByAgent returns the pending attachments of an agent.
func (r *AttachmentCacheRepository) ListByAgent(ctx context.Context, agentID string) ([]models.PendingAttachment, error) {
	keys, err := r.cache.Keys(ctx, pendingAttachmentPrefix+agentID+":*")
	if err != nil {
		return nil, err
	}
	pending := make([]models.PendingAttachment, 0, len(keys))
	for _, key := range keys {
		var item models.PendingAttachment
		if err := r.cache.Get(ctx, key, &item); err != nil {
			if errors.Is(err, appErrors.ErrCacheMiss) {
				continue
			}
			return nil, err
		}
		pending = append(pending, item)
	}
	return pending, nil
}

// Delete clears the pending record of a document.
func (r *AttachmentCacheRepository) Delete(ctx context.Context, agentID, documentName string) error {
	return r.cache.Delete(ctx, pendingKey(agentID, documentName))
}

// Enabled reports whether pending attachments can be stored.
func (r *AttachmentCacheRepository) Enabled() bool {
	return r != nil && r.cache.Enabled()
}

