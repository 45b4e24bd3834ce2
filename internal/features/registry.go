// Package features 管理可开关的扩展功能（实时搜索、同义词、附件文档等）。
//
// 功能开关保存在选项表中，形如 {"synonym": {"active": true}}。
// 已激活的功能在 Setup 时把回调注册到扩展点注册表，回调名以 "slug:" 开头。
// Setup 之后的激活与停用立即注册或注销对应回调。
package features

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/repository"
	"go.uber.org/zap"
)

const (
	// SettingsOption 功能开关所在的选项名
	SettingsOption = "wp_redisearch_feature_settings"
	// ReindexOption 存在时表示有功能变更等待重建索引
	ReindexOption = "wp_redisearch_feature_requires_reindex"
)

// 需求检查结果
const (
	RequirementsMet     = 0
	RequirementsUnmet   = 1
	RequirementsWarning = 2
)

// Info 功能描述
type Info struct {
	Slug                        string `json:"slug"`
	Title                       string `json:"title"`
	Description                 string `json:"description"`
	RequiresReindex             bool   `json:"requires_reindex"`
	DeactivationRequiresReindex bool   `json:"deactivation_requires_reindex"`

	// 选项中没有记录时视为激活
	DefaultActive bool `json:"default_active"`
}

// Requirement 需求检查结果
type Requirement struct {
	Code     int
	Messages []string
}

// Feature 扩展功能
type Feature interface {
	Info() Info
	Setup(h *hooks.Registry)
}

// Activator 激活时需要额外处理的功能
type Activator interface {
	Activate(ctx context.Context) error
}

// Deactivator 停用时需要额外处理的功能
type Deactivator interface {
	Deactivate(ctx context.Context) error
}

// Requirer 激活前需要检查运行条件的功能
type Requirer interface {
	Requirements(ctx context.Context) Requirement
}

// Setting 单个功能的开关
type Setting struct {
	Active bool `json:"active"`
}

// Status 功能及其当前状态
type Status struct {
	Info
	Active bool `json:"active"`
}

// ChangeResult 激活或停用的结果
type ChangeResult struct {
	Slug            string   `json:"slug"`
	Active          bool     `json:"active"`
	RequiresReindex bool     `json:"requires_reindex"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Registry 功能注册表
type Registry struct {
	options  repository.OptionRepository
	logger   *zap.Logger
	mu       sync.RWMutex
	features map[string]Feature
	order    []string
	hooks    *hooks.Registry
}

// NewRegistry 创建功能注册表
func NewRegistry(options repository.OptionRepository, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		options:  options,
		logger:   logger,
		features: make(map[string]Feature),
	}
}

// Register 注册功能，slug 不可重复
func (r *Registry) Register(f Feature) error {
	slug := f.Info().Slug
	if slug == "" {
		return fmt.Errorf("feature without slug")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.features[slug]; exists {
		return fmt.Errorf("feature %s already registered", slug)
	}
	r.features[slug] = f
	r.order = append(r.order, slug)
	return nil
}

// Get 按 slug 获取功能
func (r *Registry) Get(slug string) (Feature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.features[slug]
	return f, ok
}

// Slugs 按注册顺序返回全部 slug
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Settings 读取功能开关
func (r *Registry) Settings(ctx context.Context) (map[string]Setting, error) {
	raw, ok, err := r.options.Get(ctx, SettingsOption)
	if err != nil {
		return nil, fmt.Errorf("load feature settings: %w", err)
	}
	settings := make(map[string]Setting)
	if !ok || strings.TrimSpace(raw) == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		r.logger.Warn("feature settings are corrupt, treating all features as defaults", zap.Error(err))
		return make(map[string]Setting), nil
	}
	return settings, nil
}

func (r *Registry) saveSettings(ctx context.Context, settings map[string]Setting) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := r.options.Set(ctx, SettingsOption, string(data)); err != nil {
		return fmt.Errorf("save feature settings: %w", err)
	}
	return nil
}

func active(f Feature, settings map[string]Setting) bool {
	info := f.Info()
	if s, ok := settings[info.Slug]; ok {
		return s.Active
	}
	return info.DefaultActive
}

// IsActive 功能是否激活
func (r *Registry) IsActive(ctx context.Context, slug string) (bool, error) {
	f, ok := r.Get(slug)
	if !ok {
		return false, apperrors.NewNotFoundError(apperrors.ErrCodeFeatureNotFound, slug)
	}
	settings, err := r.Settings(ctx)
	if err != nil {
		return false, err
	}
	return active(f, settings), nil
}

// List 列出功能；all 为 false 时只返回已激活的
func (r *Registry) List(ctx context.Context, all bool) ([]Status, error) {
	settings, err := r.Settings(ctx)
	if err != nil {
		return nil, err
	}

	var out []Status
	for _, slug := range r.Slugs() {
		f, _ := r.Get(slug)
		st := Status{Info: f.Info(), Active: active(f, settings)}
		if all || st.Active {
			out = append(out, st)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// Activate 激活功能
func (r *Registry) Activate(ctx context.Context, slug string) (*ChangeResult, error) {
	f, ok := r.Get(slug)
	if !ok {
		return nil, apperrors.NewNotFoundError(apperrors.ErrCodeFeatureNotFound, slug)
	}
	settings, err := r.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if active(f, settings) {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeFeatureActive, "This feature is already active.")
	}

	result := &ChangeResult{Slug: slug, Active: true, RequiresReindex: f.Info().RequiresReindex}
	if req, ok := f.(Requirer); ok {
		status := req.Requirements(ctx)
		switch status.Code {
		case RequirementsUnmet:
			return nil, apperrors.NewBusinessError(apperrors.ErrCodeFeatureRequirements, strings.Join(status.Messages, "; ")).
				WithDetails(status.Messages)
		case RequirementsWarning:
			result.Warnings = status.Messages
		}
	}

	if act, ok := f.(Activator); ok {
		if err := act.Activate(ctx); err != nil {
			return nil, fmt.Errorf("activate feature %s: %w", slug, err)
		}
	}

	settings[slug] = Setting{Active: true}
	if err := r.saveSettings(ctx, settings); err != nil {
		return nil, err
	}
	if result.RequiresReindex {
		if err := r.markReindex(ctx); err != nil {
			return nil, err
		}
	}
	if h := r.boundHooks(); h != nil {
		f.Setup(h)
	}

	r.logger.Info("feature activated", zap.String("feature", slug), zap.Bool("requires_reindex", result.RequiresReindex))
	return result, nil
}

// Deactivate 停用功能
func (r *Registry) Deactivate(ctx context.Context, slug string) (*ChangeResult, error) {
	f, ok := r.Get(slug)
	if !ok {
		return nil, apperrors.NewNotFoundError(apperrors.ErrCodeFeatureNotFound, slug)
	}
	settings, err := r.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !active(f, settings) {
		return nil, apperrors.NewBusinessError(apperrors.ErrCodeFeatureInactive, "This feature is not active")
	}

	if d, ok := f.(Deactivator); ok {
		if err := d.Deactivate(ctx); err != nil {
			return nil, fmt.Errorf("deactivate feature %s: %w", slug, err)
		}
	}

	settings[slug] = Setting{Active: false}
	if err := r.saveSettings(ctx, settings); err != nil {
		return nil, err
	}

	if h := r.boundHooks(); h != nil {
		h.RemovePrefix(slug + ":")
	}

	result := &ChangeResult{Slug: slug, RequiresReindex: f.Info().DeactivationRequiresReindex}
	if result.RequiresReindex {
		if err := r.markReindex(ctx); err != nil {
			return nil, err
		}
	}

	r.logger.Info("feature deactivated", zap.String("feature", slug), zap.Bool("requires_reindex", result.RequiresReindex))
	return result, nil
}

// Setup 为已激活的功能注册回调，返回激活的 slug
func (r *Registry) Setup(ctx context.Context, h *hooks.Registry) ([]string, error) {
	settings, err := r.Settings(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.hooks = h
	r.mu.Unlock()

	var enabled []string
	for _, slug := range r.Slugs() {
		f, _ := r.Get(slug)
		if !active(f, settings) {
			continue
		}
		f.Setup(h)
		enabled = append(enabled, slug)
	}
	r.logger.Debug("features set up", zap.Strings("features", enabled))
	return enabled, nil
}

func (r *Registry) boundHooks() *hooks.Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hooks
}

func (r *Registry) markReindex(ctx context.Context) error {
	if err := r.options.Set(ctx, ReindexOption, "1"); err != nil {
		return fmt.Errorf("flag pending reindex: %w", err)
	}
	return nil
}

// ReindexPending 是否有功能变更等待重建索引
func (r *Registry) ReindexPending(ctx context.Context) (bool, error) {
	_, ok, err := r.options.Get(ctx, ReindexOption)
	return ok, err
}

// ClearReindexPending 重建索引完成后清除标记
func (r *Registry) ClearReindexPending(ctx context.Context) error {
	return r.options.Delete(ctx, ReindexOption)
}
