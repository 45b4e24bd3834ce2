package index

import (
	"fmt"
	"testing"
	"time"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/redisearch/redisearchtest"
	"github.com/aihub/wpredisearch/internal/repository/repositorytest"
)

type fixture struct {
	engine      *redisearchtest.Engine
	client      *redisearch.Client
	content     *repositorytest.Content
	options     *repositorytest.Options
	hooks       *hooks.Registry
	cfg         *config.Config
	cursors     *OptionCursorStore
	preparer    *Preparer
	manager     *Manager
	batch       *BatchIndexer
	incremental *IncrementalIndexer
}

func testConfig() *config.Config {
	return &config.Config{
		Site: config.SiteConfig{URL: "https://example.com", Timezone: "UTC"},
		Index: config.IndexConfig{
			Name:             "blog",
			PostTypes:        []string{"post", "page"},
			PostStatuses:     []string{"publish"},
			Taxonomies:       []string{"category"},
			MetaKeys:         []string{"subtitle"},
			BatchSize:        20,
			Language:         "english",
			SuggestedResults: 10,
		},
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	f := &fixture{
		engine:  redisearchtest.New(),
		content: repositorytest.NewContent(),
		options: repositorytest.NewOptions(),
		hooks:   hooks.NewRegistry(),
		cfg:     cfg,
	}
	f.client = redisearch.NewClient(f.engine, nil)
	f.cursors = NewOptionCursorStore(f.options)
	f.preparer = NewPreparer(f.content, cfg, f.hooks, nil)
	f.manager = NewManager(f.client, f.cursors, cfg.Index, f.hooks, nil)
	f.batch = NewBatchIndexer(f.client, f.content, f.preparer, f.cursors, cfg.Index, f.hooks, nil, nil)
	f.incremental = NewIncrementalIndexer(f.client, f.preparer, cfg.Index, f.hooks, nil, nil)
	return f
}

func samplePost(id uint64, postType string) models.Post {
	return models.Post{
		ID:          id,
		PostAuthor:  1,
		PostDate:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		PostTitle:   fmt.Sprintf("Post %d", id),
		PostContent: fmt.Sprintf("<p>Body of post %d</p>", id),
		PostStatus:  "publish",
		PostName:    fmt.Sprintf("post-%d", id),
		PostType:    postType,
	}
}

// addPosts 添加 ID 为 1..n 的已发布文章
func (f *fixture) addPosts(n int) {
	f.content.AddUser(1, "Admin")
	for i := 1; i <= n; i++ {
		f.content.AddPost(samplePost(uint64(i), "post"))
	}
}

func (f *fixture) documentCount() int {
	return len(f.engine.Keys("blog:post:")) + len(f.engine.Keys("blog:page:"))
}
