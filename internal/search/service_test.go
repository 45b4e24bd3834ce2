package search

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/redisearch/redisearchtest"
	"github.com/aihub/wpredisearch/internal/repository/repositorytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	engine  *redisearchtest.Engine
	content *repositorytest.Content
	service *Service
}

func newServiceFixture(t *testing.T, health HealthProvider) *serviceFixture {
	t.Helper()
	ctx := context.Background()
	cfg := searchConfig()
	cfg.Site.URL = "https://example.com"

	engine := redisearchtest.New()
	client := redisearch.NewClient(engine, nil)
	content := repositorytest.NewContent()
	content.AddUser(1, "Admin")

	manager := index.NewManager(client, index.NewOptionCursorStore(repositorytest.NewOptions()), cfg.Index, nil, nil)
	_, err := manager.CreateIndex(ctx)
	require.NoError(t, err)

	preparer := index.NewPreparer(content, cfg, nil, nil)
	incremental := index.NewIncrementalIndexer(client, preparer, cfg.Index, nil, nil, nil)

	titles := map[uint64]string{
		1: "Redis streams in practice",
		2: "Tuning postgres autovacuum",
		3: "Redis cluster failover",
		4: "Gardening for beginners",
	}
	for id, title := range titles {
		p := models.Post{
			ID:          id,
			PostAuthor:  1,
			PostDate:    time.Date(2024, 1, int(id), 9, 0, 0, 0, time.UTC),
			PostTitle:   title,
			PostContent: "<p>" + title + "</p>",
			PostStatus:  "publish",
			PostName:    "post",
			PostType:    "post",
		}
		content.AddPost(p)
		_, err := incremental.OnContentChange(ctx, index.ChangeEvent{ID: id, Post: &p})
		require.NoError(t, err)
	}

	schema := index.NewSchemaBuilder(cfg.Index, nil)
	tr := NewTranslator(client, content, health, cfg, nil, nil, nil)
	return &serviceFixture{
		engine:  engine,
		content: content,
		service: NewService(tr, content, schema.PostTypes, schema.PostStatuses, nil),
	}
}

func TestService_SearchThroughEngine(t *testing.T) {
	f := newServiceFixture(t, staticHealth(true))

	resp, err := f.service.Search(context.Background(), Request{Term: "redis"})
	require.NoError(t, err)

	assert.True(t, resp.Engine)
	assert.Equal(t, "filtered", resp.State)
	assert.Equal(t, int64(2), resp.FoundPosts)
	assert.Equal(t, 1, resp.MaxNumPages)
	assert.ElementsMatch(t, []uint64{1, 3}, ids(resp.Posts))
	assert.Empty(t, f.content.Queries)
}

func TestService_ZeroResultsDoesNotFallBack(t *testing.T) {
	f := newServiceFixture(t, staticHealth(true))

	resp, err := f.service.Search(context.Background(), Request{Term: "kubernetes"})
	require.NoError(t, err)

	assert.True(t, resp.Engine)
	assert.Equal(t, "zero_results", resp.State)
	assert.Empty(t, resp.Posts)
	assert.Empty(t, f.content.Queries)
}

func TestService_FallbackWhenEngineUnavailable(t *testing.T) {
	f := newServiceFixture(t, staticHealth(false))

	resp, err := f.service.Search(context.Background(), Request{Term: "Redis", PostsPerPage: 1, Paged: 2})
	require.NoError(t, err)

	assert.False(t, resp.Engine)
	assert.Equal(t, "engine_unavailable", resp.State)
	assert.Equal(t, int64(2), resp.FoundPosts)
	assert.Equal(t, 2, resp.MaxNumPages)
	assert.Equal(t, []uint64{1}, ids(resp.Posts))

	require.Len(t, f.content.Queries, 1)
	q := f.content.Queries[0]
	assert.Equal(t, "Redis", q.Keyword)
	assert.Equal(t, []string{"post"}, q.PostTypes)
	assert.Equal(t, []string{"publish"}, q.PostStatuses)
	assert.Equal(t, 1, q.Offset)
	assert.Equal(t, 1, q.Limit)
}

func TestService_FallbackPageOffsetOverflow(t *testing.T) {
	f := newServiceFixture(t, staticHealth(false))

	resp, err := f.service.Search(context.Background(), Request{Term: "Redis", PostsPerPage: 10, Paged: math.MaxInt})
	require.NoError(t, err)

	assert.Empty(t, resp.Posts)
	assert.Equal(t, int64(2), resp.FoundPosts)
	require.Len(t, f.content.Queries, 1)
	assert.Equal(t, math.MaxInt, f.content.Queries[0].Offset)
	assert.Equal(t, 10, f.content.Queries[0].Limit)
}

func TestService_FallbackCapsPostsPerPage(t *testing.T) {
	f := newServiceFixture(t, staticHealth(false))

	_, err := f.service.Search(context.Background(), Request{Term: "Redis", PostsPerPage: 1 << 30})
	require.NoError(t, err)
	require.Len(t, f.content.Queries, 1)
	assert.Equal(t, MaxPostsPerPage, f.content.Queries[0].Limit)
}

func TestService_FallbackOnCommandError(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.engine.FailNext("FT.SEARCH", redisearchtest.ReplyError("Syntax error at offset 3"))

	resp, err := f.service.Search(context.Background(), Request{Term: "gardening"})
	require.NoError(t, err)

	assert.False(t, resp.Engine)
	assert.Equal(t, []uint64{4}, ids(resp.Posts))
}

func TestService_EmptyTerm(t *testing.T) {
	f := newServiceFixture(t, nil)

	resp, err := f.service.Search(context.Background(), Request{Term: " "})
	require.NoError(t, err)

	assert.Equal(t, "not_applicable", resp.State)
	assert.Empty(t, resp.Posts)
	assert.Empty(t, f.content.Queries)
}

func TestService_FallbackError(t *testing.T) {
	f := newServiceFixture(t, staticHealth(false))
	f.content.FindErr = errors.New("too many connections")

	_, err := f.service.Search(context.Background(), Request{Term: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relational search")
}
