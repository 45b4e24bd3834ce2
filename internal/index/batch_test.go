package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch/redisearchtest"
	"github.com/aihub/wpredisearch/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchIndexer_FortyFivePosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPosts(45)
	_, err := f.manager.CreateIndex(ctx)
	require.NoError(t, err)

	want := []struct {
		offset  int
		indexed int
	}{
		{20, 20},
		{40, 20},
		{45, 5},
		{45, 0},
	}
	for i, w := range want {
		res, err := f.batch.RunBatch(ctx)
		require.NoError(t, err, "call %d", i+1)
		assert.Equal(t, Cursor{Offset: w.offset, FoundPosts: 45}, res.Cursor, "call %d", i+1)
		assert.Equal(t, w.indexed, res.Indexed, "call %d", i+1)
		assert.Empty(t, res.Failed)

		stored, err := f.cursors.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, res.Cursor, stored)
	}
	assert.Equal(t, 45, f.documentCount())

	doc := f.engine.Hash("blog:post:45")
	require.NotNil(t, doc)
	assert.Equal(t, "Post 45", doc[FieldTitle])
	assert.Equal(t, "english", doc["documentLanguage"])
}

func TestBatchIndexer_CursorReachesFoundPosts(t *testing.T) {
	for _, n := range []int{1, 19, 20, 21, 100} {
		for _, size := range []int{1, 7, 20} {
			t.Run(fmt.Sprintf("n=%d/batch=%d", n, size), func(t *testing.T) {
				f := newFixture(t)
				f.cfg.Index.BatchSize = size
				f.batch = NewBatchIndexer(f.client, f.content, f.preparer, f.cursors, f.cfg.Index, f.hooks, nil, nil)
				f.addPosts(n)
				ctx := context.Background()

				calls := (n + size - 1) / size
				prev := 0
				for i := 1; i <= calls; i++ {
					res, err := f.batch.RunBatch(ctx)
					require.NoError(t, err)
					assert.GreaterOrEqual(t, res.Cursor.Offset, prev)
					prev = res.Cursor.Offset
					if i < calls {
						assert.Less(t, res.Cursor.Offset, n)
					}
				}
				assert.Equal(t, n, prev)
				assert.Equal(t, n, f.documentCount())
			})
		}
	}
}

func TestBatchIndexer_ClampsWhenContentShrinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPosts(45)

	for i := 0; i < 2; i++ {
		_, err := f.batch.RunBatch(ctx)
		require.NoError(t, err)
	}
	for id := uint64(1); id <= 10; id++ {
		f.content.DeletePost(id)
	}
	writes := f.engine.CountCommand("HSET")

	res, err := f.batch.RunBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Offset: 35, FoundPosts: 35}, res.Cursor)
	assert.Zero(t, res.PageSize)
	assert.Equal(t, writes, f.engine.CountCommand("HSET"))

	stored, _ := f.cursors.Load(ctx)
	assert.Equal(t, 35, stored.Offset)
}

func TestBatchIndexer_RecordErrorsDoNotAbort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPosts(25)

	f.engine.FailNext("HSET", redisearchtest.ReplyError("ERR document rejected"))

	res, err := f.batch.RunBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 19, res.Indexed)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, uint64(25), res.Failed[0].PostID)
	assert.Equal(t, "blog:post:25", res.Failed[0].Key)
	assert.True(t, apperrors.IsCode(res.Failed[0], apperrors.ErrCodeCommandRejected))
	assert.Equal(t, 20, res.Cursor.Offset)
}

func TestBatchIndexer_ExistingDocumentIsRecordError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPosts(3)

	post := samplePost(2, "post")
	_, err := f.incremental.OnContentChange(ctx, ChangeEvent{ID: 2, Post: &post})
	require.NoError(t, err)

	res, err := f.batch.RunBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Indexed)
	require.Len(t, res.Failed, 1)
	assert.True(t, apperrors.IsCode(res.Failed[0], apperrors.ErrCodeDocumentExists))
}

func TestBatchIndexer_ConnectionErrorAborts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPosts(5)

	f.engine.FailNext("EXISTS", errors.New("read tcp 127.0.0.1:6379: i/o timeout"))

	_, err := f.batch.RunBatch(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectionError(err))

	stored, err := f.cursors.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, stored)
	assert.Zero(t, f.documentCount())
}

func TestBatchIndexer_QueryError(t *testing.T) {
	f := newFixture(t)
	f.content.FindErr = errors.New("database is down")

	_, err := f.batch.RunBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is down")
}

func TestBatchIndexer_Hooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPosts(12)
	page := samplePost(100, "page")
	page.PostStatus = "private"
	f.content.AddPost(page)

	f.hooks.BatchSize.Add("five", hooks.DefaultPriority, func(int, hooks.None) int { return 5 })
	f.hooks.IndexQuery.Add("private", hooks.DefaultPriority, func(q repository.PostQuery, _ hooks.None) repository.PostQuery {
		q.PostStatuses = append(q.PostStatuses, "private")
		q.Offset = 999
		return q
	})
	f.hooks.IndexLanguage.Add("german-pages", hooks.DefaultPriority, func(lang string, p *models.Post) string {
		if p.PostType == "page" {
			return "german"
		}
		return lang
	})
	var indexed []string
	f.hooks.AfterPostIndexed.Add("collect", hooks.DefaultPriority, func(_ context.Context, e hooks.PostIndexedEvent) {
		indexed = append(indexed, e.Key)
	})

	res, err := f.batch.RunBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Offset: 5, FoundPosts: 13}, res.Cursor)
	assert.Equal(t, []string{"blog:page:100", "blog:post:12", "blog:post:11", "blog:post:10", "blog:post:9"}, indexed)
	assert.Equal(t, "german", f.engine.Hash("blog:page:100")["documentLanguage"])

	last := f.content.Queries[len(f.content.Queries)-1]
	assert.Equal(t, 0, last.Offset)
	assert.Equal(t, 5, last.Limit)
	assert.Equal(t, []string{"post", "page"}, last.PostTypes)
}

func TestBatchIndexer_Options(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addPosts(10)
	f.content.AddPost(samplePost(50, "page"))

	res, err := f.batch.RunBatchWith(ctx, BatchOptions{PostTypes: []string{"page"}, BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, Cursor{Offset: 1, FoundPosts: 1}, res.Cursor)
	assert.Equal(t, 1, res.Indexed)

	require.NoError(t, f.cursors.Reset(ctx))
	res, err = f.batch.RunBatchWith(ctx, BatchOptions{PostIDs: []uint64{3, 7}, BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, Cursor{Offset: 2, FoundPosts: 2}, res.Cursor)
	assert.NotNil(t, f.engine.Hash("blog:post:7"))
	assert.NotNil(t, f.engine.Hash("blog:post:3"))
}

func TestOptionCursorStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.cursors.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
	assert.True(t, c.Done())

	require.NoError(t, f.cursors.Save(ctx, Cursor{Offset: 20, FoundPosts: 45}))
	raw, ok, _ := f.options.Get(ctx, CursorOption)
	require.True(t, ok)
	assert.JSONEq(t, `{"offset":20,"found_posts":45}`, raw)

	require.NoError(t, f.options.Set(ctx, CursorOption, "not json"))
	_, err = f.cursors.Load(ctx)
	assert.Error(t, err)

	require.NoError(t, f.cursors.Reset(ctx))
	c, err = f.cursors.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cursor{}, c)
}
