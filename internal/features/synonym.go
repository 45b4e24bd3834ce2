package features

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/aihub/wpredisearch/internal/hooks"
	"go.uber.org/zap"
)

// SynonymEngine 同义词操作
type SynonymEngine interface {
	SynUpdate(ctx context.Context, index, groupID string, terms ...string) error
	SynDump(ctx context.Context, index string) (map[string][]string, error)
}

var lineBreak = regexp.MustCompile(`\r\n|\r|\n`)

// ParseSynonymGroups 每行一组，组内以逗号分隔；空词条与少于两个词条的组被忽略
func ParseSynonymGroups(raw string) [][]string {
	var groups [][]string
	for _, line := range lineBreak.Split(raw, -1) {
		var terms []string
		for _, t := range strings.Split(line, ",") {
			if t = strings.TrimSpace(t); t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) > 1 {
			groups = append(groups, terms)
		}
	}
	return groups
}

// Synonym 同义词：索引创建后写入配置的同义词组
type Synonym struct {
	engine SynonymEngine
	groups string
	index  string
	logger *zap.Logger
}

// NewSynonym 创建同义词功能，groups 为原始配置文本
func NewSynonym(engine SynonymEngine, indexName, groups string, logger *zap.Logger) *Synonym {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synonym{engine: engine, groups: groups, index: indexName, logger: logger}
}

// Info 功能描述
func (s *Synonym) Info() Info {
	return Info{
		Slug:                        "synonym",
		Title:                       "Synonym",
		Description:                 "Match words that mean the same thing.",
		RequiresReindex:             true,
		DeactivationRequiresReindex: true,
	}
}

// Requirements 没有配置同义词组时给出警告
func (s *Synonym) Requirements(context.Context) Requirement {
	if len(ParseSynonymGroups(s.groups)) == 0 {
		return Requirement{Code: RequirementsWarning, Messages: []string{"No synonym groups are configured."}}
	}
	return Requirement{Code: RequirementsMet}
}

// Setup 在索引创建后写入同义词
func (s *Synonym) Setup(h *hooks.Registry) {
	h.AfterIndexCreated.Add("synonym:update", hooks.DefaultPriority, func(ctx context.Context, ev hooks.IndexCreatedEvent) {
		if err := s.Apply(ctx, ev.Index); err != nil {
			s.logger.Warn("failed to apply synonym groups", zap.String("index", ev.Index), zap.Error(err))
		}
	})
}

// Apply 逐组写入，组 ID 为序号
func (s *Synonym) Apply(ctx context.Context, indexName string) error {
	for i, terms := range ParseSynonymGroups(s.groups) {
		if err := s.engine.SynUpdate(ctx, indexName, strconv.Itoa(i), terms...); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate 引擎无法单独删除同义词，记录现有同义词，重建索引后清空
func (s *Synonym) Deactivate(ctx context.Context) error {
	dump, err := s.engine.SynDump(ctx, s.index)
	if err != nil {
		s.logger.Warn("failed to read synonyms before deactivation", zap.Error(err))
		return nil
	}
	s.logger.Info("synonyms remain until the index is rebuilt", zap.String("index", s.index), zap.Int("terms", len(dump)))
	return nil
}
