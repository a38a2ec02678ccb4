package cache

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

const (
	liveResultPrefix     = "marking:live:"
	DefaultLiveResultTTL = 30 * time.Minute
)

// LiveResultCache mirrors the coordinator's live results so other replicas
// and the UI can read them.
type LiveResultCache struct {
	cache CacheService
	ttl   time.Duration
}

func NewLiveResultCache(cache CacheService, ttl time.Duration) *LiveResultCache {
	if ttl <= 0 {
		ttl = DefaultLiveResultTTL
	}
	return &LiveResultCache{cache: cache, ttl: ttl}
}

func (c *LiveResultCache) PutResult(ctx context.Context, result *models.MarkingResult) error {
	return c.cache.Set(ctx, liveResultKey(result.QuestionID), result, c.ttl)
}

// GetResult returns nil without error when nothing is cached.
func (c *LiveResultCache) GetResult(ctx context.Context, questionID string) (*models.MarkingResult, error) {
	var result models.MarkingResult
	if err := c.cache.Get(ctx, liveResultKey(questionID), &result); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (c *LiveResultCache) ClearResults(ctx context.Context) error {
	return c.cache.DeletePattern(ctx, liveResultPrefix+"*")
}

func liveResultKey(questionID string) string {
	return liveResultPrefix + questionID
}
