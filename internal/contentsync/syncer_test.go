package contentsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/aihub/wpredisearch/internal/config"
	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/redisearch/redisearchtest"
	"github.com/aihub/wpredisearch/internal/repository/repositorytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func syncConfig() *config.Config {
	return &config.Config{
		Site: config.SiteConfig{URL: "https://example.com", Timezone: "UTC"},
		Index: config.IndexConfig{
			Name:         "blog",
			PostTypes:    []string{"post", "page"},
			PostStatuses: []string{"publish"},
			BatchSize:    10,
			Language:     "english",
		},
	}
}

func newSyncer(t *testing.T) (*Syncer, *repositorytest.Content, *redisearchtest.Engine) {
	t.Helper()
	cfg := syncConfig()
	engine := redisearchtest.New()
	client := redisearch.NewClient(engine, nil)
	content := repositorytest.NewContent()
	h := hooks.NewRegistry()
	preparer := index.NewPreparer(content, cfg, h, nil)
	incremental := index.NewIncrementalIndexer(client, preparer, cfg.Index, h, nil, nil)
	return NewSyncer(content, incremental, nil), content, engine
}

func post(id uint64, status string) models.Post {
	return models.Post{
		ID:         id,
		PostTitle:  "Post title",
		PostType:   "post",
		PostStatus: status,
		PostName:   "post-title",
		PostDate:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSyncer_Sync(t *testing.T) {
	ctx := context.Background()
	s, content, engine := newSyncer(t)

	content.AddPost(post(3, "publish"))
	res, err := s.Sync(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "published", res.Outcome)
	assert.Equal(t, "Post title", engine.Hash("blog:post:3")["post_title"])

	content.AddPost(post(3, "draft"))
	res, err = s.Sync(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "deleted", res.Outcome)
	assert.Empty(t, engine.Hash("blog:post:3"))
}

func TestSyncer_SyncMissingRecord(t *testing.T) {
	ctx := context.Background()
	s, content, engine := newSyncer(t)

	content.AddPost(post(4, "publish"))
	_, err := s.Sync(ctx, 4)
	require.NoError(t, err)

	content.DeletePost(4)
	res, err := s.Sync(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "deleted", res.Outcome)
	assert.Empty(t, engine.Keys("blog:"))

	res, err = s.Sync(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "ignored", res.Outcome)
}

func TestSyncer_InvalidID(t *testing.T) {
	s, _, _ := newSyncer(t)
	_, err := s.Sync(context.Background(), 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidConfig))
}

type mockPosts struct {
	mock.Mock
}

func (m *mockPosts) GetPost(ctx context.Context, id uint64) (*models.Post, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Post)
	return p, args.Error(1)
}

type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) OnContentChange(ctx context.Context, ev index.ChangeEvent) (index.Outcome, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(index.Outcome), args.Error(1)
}

func (m *mockIndexer) OnContentRemoved(ctx context.Context, id uint64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func TestSyncer_DatabaseError(t *testing.T) {
	posts := new(mockPosts)
	indexer := new(mockIndexer)
	posts.On("GetPost", mock.Anything, uint64(5)).Return(nil, errors.New("connection refused"))

	_, err := NewSyncer(posts, indexer, nil).Sync(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load post 5")
	indexer.AssertNotCalled(t, "OnContentChange", mock.Anything, mock.Anything)
	indexer.AssertNotCalled(t, "OnContentRemoved", mock.Anything, mock.Anything)
}

func TestSyncer_HandleMessage(t *testing.T) {
	ctx := context.Background()
	posts := new(mockPosts)
	indexer := new(mockIndexer)
	s := NewSyncer(posts, indexer, nil)

	p := post(7, "publish")
	posts.On("GetPost", mock.Anything, uint64(7)).Return(&p, nil)
	indexer.On("OnContentChange", mock.Anything, mock.MatchedBy(func(ev index.ChangeEvent) bool {
		return ev.ID == 7 && ev.Update && ev.Post != nil
	})).Return(index.Published, nil)
	indexer.On("OnContentRemoved", mock.Anything, uint64(8)).Return(true, nil)
	indexer.On("OnContentRemoved", mock.Anything, uint64(9)).
		Return(false, apperrors.NewConnectionError("redis", errors.New("reset")))

	require.NoError(t, s.HandleMessage(ctx, &sarama.ConsumerMessage{Value: []byte(`{"post_id":7}`)}))
	require.NoError(t, s.HandleMessage(ctx, &sarama.ConsumerMessage{Value: []byte(`{"post_id":8,"action":"delete"}`)}))
	require.NoError(t, s.HandleMessage(ctx, &sarama.ConsumerMessage{Value: []byte(`garbage`)}))

	err := s.HandleMessage(ctx, &sarama.ConsumerMessage{Value: []byte(`{"post_id":9,"action":"delete"}`)})
	assert.True(t, apperrors.IsConnectionError(err))

	posts.AssertExpectations(t)
	indexer.AssertExpectations(t)
}
