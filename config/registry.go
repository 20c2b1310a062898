package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/playrec/pipeline"
)

// 节点类型由 config/builders 在 init 中注册，入口处需要：
//
//	import _ "github.com/rushteam/playrec/config/builders"

// NodeBuilder 根据节点配置与依赖构建 Node。
type NodeBuilder = pipeline.BuilderFunc

var registry = struct {
	sync.RWMutex
	builders map[string]NodeBuilder
}{builders: make(map[string]NodeBuilder)}

// Register 登记一种节点类型；同名类型后注册的覆盖先注册的。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	registry.Lock()
	registry.builders[typeName] = builder
	registry.Unlock()
}

// SupportedTypes 返回已登记的节点类型（升序）。
func SupportedTypes() []string {
	registry.RLock()
	defer registry.RUnlock()
	return sortedTypes()
}

func sortedTypes() []string {
	types := make([]string, 0, len(registry.builders))
	for t := range registry.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 把当前登记表复制到一个新的 NodeFactory。
func DefaultFactory() *pipeline.NodeFactory {
	registry.RLock()
	defer registry.RUnlock()
	f := pipeline.NewNodeFactory()
	for typeName, builder := range registry.builders {
		f.Register(typeName, builder)
	}
	return f
}

// ValidatePipelineConfig 检查节点列表非空且每个类型都已登记。
func ValidatePipelineConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return fmt.Errorf("pipeline config is nil")
	}
	if len(cfg.Pipeline.Nodes) == 0 {
		return fmt.Errorf("pipeline %q has no nodes", cfg.Pipeline.Name)
	}
	registry.RLock()
	defer registry.RUnlock()
	for i, nc := range cfg.Pipeline.Nodes {
		if nc.Type == "" {
			return fmt.Errorf("node %d has no type", i)
		}
		if _, ok := registry.builders[nc.Type]; !ok {
			return fmt.Errorf("node %d: unsupported type %q (supported: %v)", i, nc.Type, sortedTypes())
		}
	}
	return nil
}

// BuildPipeline 校验配置后用登记表构建 Pipeline。
func BuildPipeline(cfg *pipeline.Config, deps pipeline.Deps) (*pipeline.Pipeline, error) {
	if err := ValidatePipelineConfig(cfg); err != nil {
		return nil, err
	}
	return cfg.BuildPipeline(DefaultFactory(), deps)
}
