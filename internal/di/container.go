// Package di 使用 dig 组装插件的全部组件。
package di

import (
	"io"
	"os"

	"github.com/aihub/wpredisearch/internal/config"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Container 是依赖注入容器的全局实例
var Container *dig.Container

// InitContainer 初始化空容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// Build 创建容器并注册全部组件；out 为索引进度输出，nil 时写到标准输出
func Build(cfg *config.Config, logger *zap.Logger, out io.Writer) (*dig.Container, error) {
	if out == nil {
		out = os.Stdout
	}
	container := InitContainer()
	if err := RegisterProviders(container, cfg, logger, out); err != nil {
		return nil, err
	}
	return container, nil
}

// GetContainer 获取依赖注入容器实例
func GetContainer() *dig.Container {
	return Container
}

// Invoke 在全局容器上执行 function
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}
