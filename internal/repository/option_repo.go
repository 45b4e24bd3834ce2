package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aihub/wpredisearch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// optionRepository 选项仓库实现
type optionRepository struct {
	db    *gorm.DB
	table string
}

// NewOptionRepository 创建选项仓库
func NewOptionRepository(db *gorm.DB, tablePrefix string) OptionRepository {
	return &optionRepository{db: db, table: tablePrefix + models.Option{}.TableName()}
}

// GetDB 获取数据库连接
func (r *optionRepository) GetDB() *gorm.DB {
	return r.db
}

// Get 读取选项
func (r *optionRepository) Get(ctx context.Context, name string) (string, bool, error) {
	var opt models.Option
	err := r.db.WithContext(ctx).Table(r.table).Where("option_name = ?", name).Take(&opt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get option %s: %w", name, err)
	}
	return opt.OptionValue, true, nil
}

// Set 写入或更新选项
func (r *optionRepository) Set(ctx context.Context, name, value string) error {
	opt := models.Option{OptionName: name, OptionValue: value, Autoload: "yes"}
	err := r.db.WithContext(ctx).Table(r.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "option_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"option_value"}),
		}).
		Create(&opt).Error
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", name, err)
	}
	return nil
}

// Delete 删除选项
func (r *optionRepository) Delete(ctx context.Context, name string) error {
	err := r.db.WithContext(ctx).Table(r.table).Where("option_name = ?", name).Delete(&models.Option{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete option %s: %w", name, err)
	}
	return nil
}
