package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/marking-service/internal/models"
)

// memoryCache is an in-process CacheService for tests.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	data, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func sampleResult(id string) *models.MarkingResult {
	return &models.MarkingResult{
		QuestionID:      id,
		QuestionType:    models.LongAnswer,
		UserAnswer:      models.TextAnswer("An answer."),
		AnnotatedAnswer: models.AnnotatedAnswer{Text: "An `answer`."},
		MarkMax:         6,
		UserMark:        models.MarkPtr(3),
		IsMarked:        true,
		Annotations:     models.Annotations{Strong: []string{"answer"}, Weak: []string{}},
	}
}

func TestLiveResultCache_InMemory(t *testing.T) {
	backing := newMemoryCache()
	live := NewLiveResultCache(backing, 0)
	ctx := context.Background()

	require.NoError(t, live.PutResult(ctx, sampleResult("q1")))
	assert.Equal(t, DefaultLiveResultTTL, backing.ttls["marking:live:q1"])

	got, err := live.GetResult(ctx, "q1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "An `answer`.", got.AnnotatedAnswer.Text)
	assert.Equal(t, 3.0, *got.UserMark)

	missing, err := live.GetResult(ctx, "q2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, live.ClearResults(ctx))
	cleared, err := live.GetResult(ctx, "q1")
	require.NoError(t, err)
	assert.Nil(t, cleared)
}

func TestLiveResultCache_Redis(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	live := NewLiveResultCache(NewRedisCache(client, slog.New(slog.NewTextHandler(io.Discard, nil))), time.Minute)
	require.NoError(t, live.PutResult(ctx, sampleResult("redis-q1")))
	require.NoError(t, live.PutResult(ctx, sampleResult("redis-q2")))

	ttl, err := client.TTL(ctx, "marking:live:redis-q1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, err := live.GetResult(ctx, "redis-q2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "redis-q2", got.QuestionID)

	require.NoError(t, live.ClearResults(ctx))
	n, err := client.Exists(ctx, "marking:live:redis-q1", "marking:live:redis-q2").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
