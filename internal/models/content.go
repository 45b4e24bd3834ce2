package models

import (
	"time"
)

// 表名均不含前缀，由仓库层按配置的 table_prefix 拼接

// Post 内容记录（文章、页面、附件等）
type Post struct {
	ID           uint64    `gorm:"primaryKey;column:ID" json:"ID"`
	PostAuthor   uint64    `gorm:"column:post_author;index" json:"post_author"`
	PostDate     time.Time `gorm:"column:post_date" json:"post_date"`
	PostDateGMT  time.Time `gorm:"column:post_date_gmt" json:"post_date_gmt"`
	PostContent  string    `gorm:"column:post_content;type:text" json:"post_content"`
	PostTitle    string    `gorm:"column:post_title;type:text" json:"post_title"`
	PostExcerpt  string    `gorm:"column:post_excerpt;type:text" json:"post_excerpt"`
	PostStatus   string    `gorm:"column:post_status;size:20;default:publish;index:type_status_date,priority:2" json:"post_status"`
	PostName     string    `gorm:"column:post_name;size:200;index" json:"post_name"`
	PostModified time.Time `gorm:"column:post_modified" json:"post_modified"`
	PostParent   uint64    `gorm:"column:post_parent;index" json:"post_parent"`
	GUID         string    `gorm:"column:guid;size:255" json:"guid"`
	MenuOrder    int       `gorm:"column:menu_order" json:"menu_order"`
	PostType     string    `gorm:"column:post_type;size:20;default:post;index:type_status_date,priority:1" json:"post_type"`
	PostMimeType string    `gorm:"column:post_mime_type;size:100" json:"post_mime_type"`
	CommentCount int64     `gorm:"column:comment_count" json:"comment_count"`
}

func (Post) TableName() string {
	return "posts"
}

// PostMeta 内容元数据
type PostMeta struct {
	MetaID    uint64 `gorm:"primaryKey;column:meta_id" json:"meta_id"`
	PostID    uint64 `gorm:"column:post_id;index" json:"post_id"`
	MetaKey   string `gorm:"column:meta_key;size:255;index" json:"meta_key"`
	MetaValue string `gorm:"column:meta_value;type:text" json:"meta_value"`
}

func (PostMeta) TableName() string {
	return "postmeta"
}

// User 作者
type User struct {
	ID           uint64    `gorm:"primaryKey;column:ID" json:"ID"`
	UserLogin    string    `gorm:"column:user_login;size:60;index" json:"user_login"`
	UserNicename string    `gorm:"column:user_nicename;size:50" json:"user_nicename"`
	UserEmail    string    `gorm:"column:user_email;size:100" json:"user_email"`
	DisplayName  string    `gorm:"column:display_name;size:250" json:"display_name"`
	Registered   time.Time `gorm:"column:user_registered" json:"user_registered"`
}

func (User) TableName() string {
	return "users"
}

// Term 分类项
type Term struct {
	TermID uint64 `gorm:"primaryKey;column:term_id" json:"term_id"`
	Name   string `gorm:"column:name;size:200" json:"name"`
	Slug   string `gorm:"column:slug;size:200;index" json:"slug"`
}

func (Term) TableName() string {
	return "terms"
}

// TermTaxonomy 分类项所属分类法
type TermTaxonomy struct {
	TermTaxonomyID uint64 `gorm:"primaryKey;column:term_taxonomy_id" json:"term_taxonomy_id"`
	TermID         uint64 `gorm:"column:term_id;index" json:"term_id"`
	Taxonomy       string `gorm:"column:taxonomy;size:32;index" json:"taxonomy"`
	Description    string `gorm:"column:description;type:text" json:"description"`
	Parent         uint64 `gorm:"column:parent" json:"parent"`
	Count          int64  `gorm:"column:count" json:"count"`
}

func (TermTaxonomy) TableName() string {
	return "term_taxonomy"
}

// TermRelationship 内容与分类项的关联
type TermRelationship struct {
	ObjectID       uint64 `gorm:"primaryKey;column:object_id;autoIncrement:false" json:"object_id"`
	TermTaxonomyID uint64 `gorm:"primaryKey;column:term_taxonomy_id;autoIncrement:false" json:"term_taxonomy_id"`
	TermOrder      int    `gorm:"column:term_order" json:"term_order"`
}

func (TermRelationship) TableName() string {
	return "term_relationships"
}

// Option 站点选项（持久化键值）
type Option struct {
	OptionID    uint64 `gorm:"primaryKey;column:option_id" json:"option_id"`
	OptionName  string `gorm:"column:option_name;size:191;uniqueIndex" json:"option_name"`
	OptionValue string `gorm:"column:option_value;type:text" json:"option_value"`
	Autoload    string `gorm:"column:autoload;size:20;default:yes" json:"autoload"`
}

func (Option) TableName() string {
	return "options"
}

// AllModels 需要迁移的模型
func AllModels() []interface{} {
	return []interface{}{&Post{}, &PostMeta{}, &User{}, &Term{}, &TermTaxonomy{}, &TermRelationship{}, &Option{}}
}
