package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

var postColumns = []string{"ID", "post_author", "post_date", "post_title", "post_content", "post_status", "post_type"}

func TestContentRepository_FindPage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db, "wp_")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "wp_posts" WHERE post_type IN \(\$1,\$2\) AND post_status IN \(\$3\)`).
		WithArgs("post", "page", "publish").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "wp_posts" WHERE post_type IN \(\$1,\$2\) AND post_status IN \(\$3\) ORDER BY "ID" DESC LIMIT 20 OFFSET 40`).
		WithArgs("post", "page", "publish").
		WillReturnRows(sqlmock.NewRows(postColumns).
			AddRow(5, 1, now, "Five", "body", "publish", "post").
			AddRow(4, 1, now, "Four", "body", "publish", "page"))

	posts, total, err := repo.FindPage(context.Background(), PostQuery{
		PostTypes:    []string{"post", "page"},
		PostStatuses: []string{"publish"},
		Offset:       40,
		Limit:        20,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 45, total)
	require.Len(t, posts, 2)
	assert.EqualValues(t, 5, posts[0].ID)
	assert.Equal(t, "page", posts[1].PostType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepository_FindPage_PastEnd(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db, "wp_")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "wp_posts"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(10))

	posts, total, err := repo.FindPage(context.Background(), PostQuery{PostTypes: []string{"post"}, Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepository_FindByIDs_PreservesOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db, "wp_")

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "wp_posts" WHERE "ID" IN \(\$1,\$2,\$3,\$4\)`).
		WithArgs(42, 7, 19, 100).
		WillReturnRows(sqlmock.NewRows(postColumns).
			AddRow(7, 1, now, "Seven", "", "publish", "post").
			AddRow(19, 1, now, "Nineteen", "", "draft", "page").
			AddRow(42, 1, now, "Forty two", "", "publish", "post"))

	posts, err := repo.FindByIDs(context.Background(), []uint64{42, 7, 19, 100})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.EqualValues(t, 42, posts[0].ID)
	assert.EqualValues(t, 7, posts[1].ID)
	assert.EqualValues(t, 19, posts[2].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepository_GetPost_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db, "wp_")

	mock.ExpectQuery(`SELECT \* FROM "wp_posts" WHERE "ID" = \$1 LIMIT 1`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(postColumns))

	_, err := repo.GetPost(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRecordNotFound))
}

func TestContentRepository_AuthorAndTerms(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db, "wp_")
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "wp_users" WHERE "ID" = \$1 LIMIT 1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"ID", "display_name"}).AddRow(3, "Jane Doe"))

	name, err := repo.AuthorDisplayName(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", name)

	mock.ExpectQuery(`SELECT .*t.*name.* FROM wp_terms AS t INNER JOIN wp_term_taxonomy AS tt .* INNER JOIN wp_term_relationships AS tr .* WHERE tr.object_id = \$1 AND tt.taxonomy = \$2 ORDER BY t.name ASC`).
		WithArgs(5, "category").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Go").AddRow("Redis"))

	terms, err := repo.PostTerms(ctx, 5, "category")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "Redis"}, terms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepository_PostMeta(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db, "wp_")
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .*meta_value.* FROM "wp_postmeta" WHERE post_id = \$1 AND meta_key = \$2 ORDER BY meta_id ASC LIMIT 1`).
		WithArgs(5, "subtitle").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}).AddRow("A subtitle"))
	mock.ExpectQuery(`FROM "wp_postmeta"`).
		WithArgs(5, "missing").
		WillReturnRows(sqlmock.NewRows([]string{"meta_value"}))

	v, ok, err := repo.PostMeta(ctx, 5, "subtitle")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A subtitle", v)

	_, ok, err = repo.PostMeta(ctx, 5, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOptionRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOptionRepository(db, "wp_")
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "wp_options" WHERE option_name = \$1 LIMIT 1`).
		WithArgs("wp_redisearch_index_meta").
		WillReturnRows(sqlmock.NewRows([]string{"option_id", "option_name", "option_value"}))

	_, ok, err := repo.Get(ctx, "wp_redisearch_index_meta")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery(`INSERT INTO "wp_options" .* ON CONFLICT \("option_name"\) DO UPDATE SET "option_value"="excluded"."option_value"`).
		WillReturnRows(sqlmock.NewRows([]string{"option_id"}).AddRow(1))
	require.NoError(t, repo.Set(ctx, "wp_redisearch_index_meta", `{"offset":0,"found_posts":0}`))

	mock.ExpectExec(`DELETE FROM "wp_options" WHERE option_name = \$1`).
		WithArgs("wp_redisearch_index_meta").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, "wp_redisearch_index_meta"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentRepository_FindPage_Keyword(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewContentRepository(db, "wp_")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "wp_posts" WHERE post_type IN \(\$1\) AND \(post_title ILIKE \$2 OR post_excerpt ILIKE \$3 OR post_content ILIKE \$4\)`).
		WithArgs("post", `%50\%%`, `%50\%%`, `%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	posts, total, err := repo.FindPage(context.Background(), PostQuery{PostTypes: []string{"post"}, Keyword: "50%", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
