package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/database"
	"github.com/aihub/wpredisearch/internal/features"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/redisearch/redisearchtest"
	"github.com/aihub/wpredisearch/internal/repository/repositorytest"
	"github.com/aihub/wpredisearch/internal/search"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	cli     *cli
	out     *bytes.Buffer
	engine  *redisearchtest.Engine
	content *repositorytest.Content
	options *repositorytest.Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{
		Site: config.SiteConfig{URL: "https://example.com", Timezone: "UTC"},
		Index: config.IndexConfig{
			Name:             "blog",
			PostTypes:        []string{"post"},
			PostStatuses:     []string{"publish"},
			BatchSize:        10,
			Language:         "english",
			SuggestedResults: 5,
		},
	}

	out := &bytes.Buffer{}
	engine := redisearchtest.New()
	client := redisearch.NewClient(engine, nil)
	content := repositorytest.NewContent()
	options := repositorytest.NewOptions()
	h := hooks.NewRegistry()
	cursors := index.NewOptionCursorStore(options)

	preparer := index.NewPreparer(content, cfg, h, nil)
	manager := index.NewManager(client, cursors, cfg.Index, h, nil)
	batch := index.NewBatchIndexer(client, content, preparer, cursors, cfg.Index, h, nil, nil)
	runner := index.NewRunner(manager, batch, cursors, preparer, h, nil, out, nil)

	log := logrus.New()
	log.SetOutput(os.Stderr)
	health := database.NewHealthChecker(client, nil, cfg.Index.Name, nil, log)
	translator := search.NewTranslator(client, content, health, cfg, h, nil, nil)
	schema := index.NewSchemaBuilder(cfg.Index, h)
	service := search.NewService(translator, content, schema.PostTypes, schema.PostStatuses, nil)

	live := features.NewLiveSearch(client, cfg.Index, nil)
	registry := features.NewRegistry(options, nil)
	require.NoError(t, registry.Register(live))
	require.NoError(t, registry.Register(features.NewSynonym(client, cfg.Index.Name, "car,auto", nil)))
	_, err := registry.Setup(context.Background(), h)
	require.NoError(t, err)

	return &harness{
		cli: &cli{
			manager:  manager,
			runner:   runner,
			features: registry,
			search:   service,
			live:     live,
			health:   health,
			out:      out,
		},
		out:     out,
		engine:  engine,
		content: content,
		options: options,
	}
}

func (h *harness) addPosts(titles ...string) {
	for i, title := range titles {
		id := uint64(i + 1)
		h.content.AddPost(models.Post{
			ID:          id,
			PostTitle:   title,
			PostContent: "Body of " + title,
			PostType:    "post",
			PostStatus:  "publish",
			PostName:    fmt.Sprintf("post-%d", id),
			PostDate:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		})
	}
}

func (h *harness) exec(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()
	return h.cli.execute(context.Background(), args)
}

func TestIndexWithSetup(t *testing.T) {
	h := newHarness(t)
	h.addPosts("Alpha", "Beta", "Gamma")

	require.NoError(t, h.exec(t, "index", "--setup", "--posts-per-page=2"))
	out := h.out.String()
	assert.Contains(t, out, "Recreating index blog...")
	assert.Contains(t, out, "Processed 2/3 entries. . .\nProcessed 3/3 entries. . .\n")
	assert.Contains(t, out, "Number of posts indexed on site: 3")
	assert.Contains(t, out, "Success: Done!")
	assert.Len(t, h.engine.Keys("blog:post:"), 3)
}

func TestIndexPostTypeAndAliases(t *testing.T) {
	h := newHarness(t)
	h.addPosts("Alpha")
	h.content.AddPost(models.Post{ID: 2, PostTitle: "About", PostType: "page", PostStatus: "publish", PostName: "about"})
	require.NoError(t, h.exec(t, "create-index"))

	require.NoError(t, h.exec(t, "index", "--post-type=page"))
	assert.Equal(t, []string{"blog:page:2"}, h.engine.Keys("blog:"))

	require.NoError(t, h.exec(t, "index", "--post-types=post", "--batch-size=1"))
	assert.Contains(t, h.out.String(), "Processed 1/1 entries. . .")
	assert.Equal(t, []string{"blog:post:1"}, h.engine.Keys("blog:post:"))
}

func TestIndexPostIDs(t *testing.T) {
	h := newHarness(t)
	h.addPosts("Alpha", "Beta", "Gamma")
	require.NoError(t, h.exec(t, "create-index"))

	require.NoError(t, h.exec(t, "index", "--post-ids=1, 3,abc,0"))
	assert.Equal(t, []string{"blog:post:1", "blog:post:3"}, h.engine.Keys("blog:post:"))
}

func TestIndexClearsPendingReindex(t *testing.T) {
	h := newHarness(t)
	h.addPosts("Alpha")
	ctx := context.Background()

	require.NoError(t, h.exec(t, "activate-feature", "synonym"))
	pending, err := h.cli.features.ReindexPending(ctx)
	require.NoError(t, err)
	require.True(t, pending)

	require.NoError(t, h.exec(t, "index", "--setup"))
	pending, err = h.cli.features.ReindexPending(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestIndexReportsFailures(t *testing.T) {
	h := newHarness(t)
	h.addPosts("Alpha", "Beta")
	require.NoError(t, h.exec(t, "create-index"))
	h.engine.FailNext("HSET", redisearchtest.ReplyError("ERR rejected"))

	err := h.exec(t, "index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "number of post index errors on site: 1")
	assert.Contains(t, h.out.String(), "Number of posts indexed on site: 1")
}

func TestCreateDropAndInfo(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.exec(t, "create-index"))
	assert.Contains(t, h.out.String(), "Success: Index created")

	require.NoError(t, h.exec(t, "info"))
	assert.Contains(t, h.out.String(), "===== Info =====\nindex_name: blog\n")
	assert.Contains(t, h.out.String(), "cursor: 0/0")

	require.NoError(t, h.exec(t, "drop-index"))
	assert.Equal(t, "Dropping index...\nSuccess: Index dropped\n", h.out.String())

	err := h.exec(t, "drop-index")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index drop failed")
}

func TestSearchCommand(t *testing.T) {
	h := newHarness(t)
	h.addPosts("Searching Widgets", "Other Things")
	require.NoError(t, h.exec(t, "index", "--setup"))

	require.NoError(t, h.exec(t, "search", "widgets"))
	assert.Contains(t, h.out.String(), "Found 1 posts (redisearch, page 1/1)")
	assert.Contains(t, h.out.String(), "1\tpost\tSearching Widgets")

	assert.Error(t, h.exec(t, "search"))
}

func TestFeatureCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.exec(t, "list-features", "--all"))
	assert.Equal(t, "Registered features:\nlive-search\nsynonym\n", h.out.String())

	require.NoError(t, h.exec(t, "list-features"))
	assert.Equal(t, "Active features:\n", h.out.String())

	require.NoError(t, h.exec(t, "activate-feature", "synonym"))
	assert.Contains(t, h.out.String(), "This feature requires a re-index.")
	assert.Contains(t, h.out.String(), reindexHint)
	assert.Contains(t, h.out.String(), "Success: Feature Synonym activated")

	err := h.exec(t, "activate-feature", "synonym")
	require.Error(t, err)
	assert.Equal(t, "This feature is already active.", err.Error())

	err = h.exec(t, "activate-feature", "teleport")
	require.Error(t, err)
	assert.Equal(t, "No feature with this slug is registered.", err.Error())

	require.NoError(t, h.exec(t, "deactivate-feature", "synonym"))
	assert.Contains(t, h.out.String(), "requires a re-index after deactivation also")

	err = h.exec(t, "deactivate-feature", "synonym")
	require.Error(t, err)
	assert.Equal(t, "This feature is not active", err.Error())

	assert.Error(t, h.exec(t, "activate-feature"))
}

func TestSuggestCommand(t *testing.T) {
	h := newHarness(t)
	h.addPosts("Suggestion Box")

	err := h.exec(t, "suggest", "sug")
	require.Error(t, err)

	require.NoError(t, h.exec(t, "activate-feature", "live-search"))
	assert.Contains(t, h.out.String(), "Warning: Feature can be used, but there are warnings: Re-indexing is highly recommended.")

	require.NoError(t, h.exec(t, "index", "--setup"))
	require.NoError(t, h.exec(t, "suggest", "sug"))
	assert.Equal(t, "Suggestion Box\thttps://example.com/?p=1\n", h.out.String())
}

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []uint64{10, 11, 14}, parseIDs("10, 11,,x,-2,14"))
	assert.Nil(t, parseIDs(""))
	assert.Equal(t, []string{"post", "page"}, splitList(" post ,page,"))
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "activate-feature")

	assert.Equal(t, 2, run([]string{"teleport"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "teleport"`)
}
