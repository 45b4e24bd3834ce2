package features

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/extract"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/kafka"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/redisearch/redisearchtest"
	"github.com/aihub/wpredisearch/internal/repository"
	"github.com/aihub/wpredisearch/internal/repository/repositorytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexedEvent(post *models.Post, permalink string) hooks.PostIndexedEvent {
	return hooks.PostIndexedEvent{
		Index:  "blog",
		Key:    index.DocumentKey("blog", post.PostType, post.ID),
		Post:   post,
		Fields: map[string]interface{}{index.FieldPermalink: permalink},
	}
}

func TestLiveSearch_Dictionary(t *testing.T) {
	ctx := context.Background()
	engine := redisearchtest.New()
	client := redisearch.NewClient(engine, nil)
	live := NewLiveSearch(client, config.IndexConfig{Name: "blog", SuggestedResults: 2}, nil)

	h := hooks.NewRegistry()
	live.Setup(h)

	hello := &models.Post{ID: 1, PostType: "post", PostTitle: "Hello World"}
	help := &models.Post{ID: 2, PostType: "post", PostTitle: "Help Center"}
	helium := &models.Post{ID: 3, PostType: "page", PostTitle: "Helium"}

	h.AfterPostIndexed.Do(ctx, indexedEvent(hello, "https://example.com/hello/"))
	h.AfterPostIndexed.Do(ctx, indexedEvent(help, "https://example.com/help/"))
	h.AfterPostPublished.Do(ctx, indexedEvent(helium, "https://example.com/helium/"))
	// 重复发布同一标题只保留一条，负载更新
	h.AfterPostPublished.Do(ctx, indexedEvent(hello, "https://example.com/hello-again/"))

	key := redisearch.SuggestionKey("blog")
	assert.ElementsMatch(t, []string{
		"Hello World|https://example.com/hello-again/",
		"Help Center|https://example.com/help/",
		"Helium|https://example.com/helium/",
	}, engine.Suggestions(key))

	got, err := live.Suggest(ctx, "hel")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	empty, err := live.Suggest(ctx, "  ")
	require.NoError(t, err)
	assert.Empty(t, empty)

	h.AfterPostDeleted.Do(ctx, hooks.PostDeletedEvent{Index: "blog", PostID: 2, Post: help})
	h.AfterPostDeleted.Do(ctx, hooks.PostDeletedEvent{Index: "blog", PostID: 9})
	assert.Len(t, engine.Suggestions(key), 2)
	assert.NotContains(t, engine.Suggestions(key), "Help Center|https://example.com/help/")
}

func TestLiveSearch_SuggestError(t *testing.T) {
	engine := redisearchtest.New()
	engine.FailNext("FT.SUGGET", errors.New("connection reset"))
	live := NewLiveSearch(redisearch.NewClient(engine, nil), config.IndexConfig{Name: "blog"}, nil)

	_, err := live.Suggest(context.Background(), "he")
	assert.Error(t, err)
	assert.Equal(t, RequirementsWarning, live.Requirements(context.Background()).Code)
}

func TestParseSynonymGroups(t *testing.T) {
	groups := ParseSynonymGroups("car, automobile ,vehicle\r\nboat\rphone,mobile\n\n , ,")
	assert.Equal(t, [][]string{
		{"car", "automobile", "vehicle"},
		{"phone", "mobile"},
	}, groups)
	assert.Empty(t, ParseSynonymGroups(""))
}

func TestSynonym_AppliedAfterIndexCreated(t *testing.T) {
	ctx := context.Background()
	engine := redisearchtest.New()
	client := redisearch.NewClient(engine, nil)
	require.NoError(t, client.CreateIndex(ctx, redisearch.IndexDefinition{
		Name:     "blog",
		Prefixes: []string{"blog:post:"},
		Fields:   []redisearch.FieldDefinition{{Name: "post_title", Kind: redisearch.Text}},
	}))

	syn := NewSynonym(client, "blog", "car,automobile\nphone,mobile", nil)
	assert.Equal(t, RequirementsMet, syn.Requirements(ctx).Code)

	h := hooks.NewRegistry()
	syn.Setup(h)
	h.AfterIndexCreated.Do(ctx, hooks.IndexCreatedEvent{Index: "blog"})

	dump, err := client.SynDump(ctx, "blog")
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, dump["car"])
	assert.Equal(t, []string{"0"}, dump["automobile"])
	assert.Equal(t, []string{"1"}, dump["mobile"])

	assert.NoError(t, syn.Deactivate(ctx))
	assert.Equal(t, RequirementsWarning, NewSynonym(client, "blog", "", nil).Requirements(ctx).Code)
}

func newDocumentFeature(t *testing.T) (*Document, *repositorytest.Content) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024", "05"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024", "05", "manual.txt"), []byte("Install   the\n\nwidget carefully"), 0o644))

	content := repositorytest.NewContent()
	extractor := extract.NewExtractor(extract.NewLocalSource(dir), extract.NewManager(), nil)
	return NewDocument(extractor, content, []string{"text/plain", "application/pdf"}, nil), content
}

func TestDocument_Setup(t *testing.T) {
	doc, content := newDocumentFeature(t)
	assert.Equal(t, RequirementsMet, doc.Requirements(context.Background()).Code)

	h := hooks.NewRegistry()
	doc.Setup(h)

	assert.Equal(t, []string{"post", "attachment"}, h.PostTypes.Apply([]string{"post"}, hooks.None{}))
	assert.Equal(t, []string{"publish", "inherit"}, h.PostStatuses.Apply([]string{"publish"}, hooks.None{}))
	assert.Equal(t, []string{"attachment"}, h.PostTypes.Apply([]string{"attachment"}, hooks.None{}))

	fields := h.MetaSchema.Apply(nil, nil)
	require.Len(t, fields, 1)
	assert.Equal(t, FieldDocument, fields[0].Name)

	q := h.IndexQuery.Apply(repository.PostQuery{}, hooks.None{})
	assert.Equal(t, []string{"text/plain", "application/pdf"}, q.MimeTypes)

	attachment := &models.Post{ID: 5, PostType: "attachment", PostMimeType: "text/plain"}
	content.AddMeta(5, AttachedFileMeta, "2024/05/manual.txt")
	prepared := h.PreparedFields.Apply(map[string]interface{}{"post_title": "Manual"}, attachment)
	assert.Equal(t, "Install the widget carefully", prepared[FieldDocument])

	image := &models.Post{ID: 6, PostType: "attachment", PostMimeType: "image/png"}
	content.AddMeta(6, AttachedFileMeta, "2024/05/logo.png")
	prepared = h.PreparedFields.Apply(map[string]interface{}{}, image)
	assert.NotContains(t, prepared, FieldDocument)

	post := &models.Post{ID: 7, PostType: "post"}
	prepared = h.PreparedFields.Apply(map[string]interface{}{}, post)
	assert.NotContains(t, prepared, FieldDocument)
}

func TestDocument_MissingFile(t *testing.T) {
	doc, content := newDocumentFeature(t)
	h := hooks.NewRegistry()
	doc.Setup(h)

	noMeta := &models.Post{ID: 8, PostType: "attachment", PostMimeType: "text/plain"}
	assert.NotContains(t, h.PreparedFields.Apply(map[string]interface{}{}, noMeta), FieldDocument)

	content.AddMeta(9, AttachedFileMeta, "2024/05/missing.txt")
	missing := &models.Post{ID: 9, PostType: "attachment", PostMimeType: "text/plain"}
	assert.NotContains(t, h.PreparedFields.Apply(map[string]interface{}{}, missing), FieldDocument)
}

func TestDocument_Requirements(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, RequirementsUnmet, NewDocument(nil, nil, extract.DefaultMimeTypes, nil).Requirements(ctx).Code)

	doc, _ := newDocumentFeature(t)
	doc.mimeTypes = nil
	assert.Equal(t, RequirementsUnmet, doc.Requirements(ctx).Code)
}

type recordingPublisher struct {
	keys   []string
	events []IndexEvent
	err    error
}

func (p *recordingPublisher) Publish(key string, v interface{}, _ map[string]string) error {
	p.keys = append(p.keys, key)
	if ev, ok := v.(IndexEvent); ok {
		p.events = append(p.events, ev)
	}
	return p.err
}

func TestEventStream_Publishes(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	stream := NewEventStream(pub, nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stream.now = func() time.Time { return fixed }

	h := hooks.NewRegistry()
	stream.Setup(h)

	post := &models.Post{ID: 11, PostType: "post", PostTitle: "Release notes"}
	h.AfterPostPublished.Do(ctx, indexedEvent(post, "https://example.com/release-notes/"))
	h.AfterPostDeleted.Do(ctx, hooks.PostDeletedEvent{Index: "blog", Key: "blog:post:11", PostID: 11})

	require.Len(t, pub.events, 2)
	assert.Equal(t, EventIndexed, pub.events[0].Event)
	assert.Equal(t, uint64(11), pub.events[0].PostID)
	assert.Equal(t, "https://example.com/release-notes/", pub.events[0].Permalink)
	assert.Equal(t, fixed, pub.events[0].Timestamp)
	assert.NotEmpty(t, pub.events[0].ID)
	assert.NotEqual(t, pub.events[0].ID, pub.events[1].ID)

	assert.Equal(t, EventDeleted, pub.events[1].Event)
	assert.Equal(t, []string{"blog:post:11", "blog:post:11"}, pub.keys)
}

func TestEventStream_PublishErrorIsLogged(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	stream := NewEventStream(pub, nil)
	h := hooks.NewRegistry()
	stream.Setup(h)

	assert.NotPanics(t, func() {
		h.AfterPostIndexed.Do(context.Background(), indexedEvent(&models.Post{ID: 1, PostType: "post"}, ""))
	})
	assert.Len(t, pub.keys, 1)
	assert.Equal(t, RequirementsUnmet, NewEventStream(nil, nil).Requirements(context.Background()).Code)
}

func TestEventStream_KafkaProducer(t *testing.T) {
	sp := mocks.NewSyncProducer(t, kafka.NewProducerConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev IndexEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Event != EventDeleted || ev.PostID != 4 {
			return errors.New("unexpected event")
		}
		return nil
	})
	producer := kafka.NewProducerWith(sp, "wp-index-events", nil)

	h := hooks.NewRegistry()
	NewEventStream(producer, nil).Setup(h)
	h.AfterPostDeleted.Do(context.Background(), hooks.PostDeletedEvent{Index: "blog", Key: "blog:page:4", PostID: 4})

	require.NoError(t, producer.Close())
}

func TestPersistence_SavesAfterChanges(t *testing.T) {
	ctx := context.Background()
	engine := redisearchtest.New()
	p := NewPersistence(redisearch.NewClient(engine, nil), true, nil)
	assert.True(t, p.Info().DefaultActive)

	h := hooks.NewRegistry()
	p.Setup(h)
	h.AfterPostPublished.Do(ctx, indexedEvent(&models.Post{ID: 1, PostType: "post"}, ""))
	h.AfterPostDeleted.Do(ctx, hooks.PostDeletedEvent{Index: "blog", PostID: 1})
	// 批量写入不单独落盘
	h.AfterPostIndexed.Do(ctx, indexedEvent(&models.Post{ID: 2, PostType: "post"}, ""))

	assert.Equal(t, 2, engine.CountCommand("SAVE"))
}
