package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/playrec/core"
)

// Config 描述一条按序执行的节点链，可写成 YAML 或 JSON：
//
//	pipeline:
//	  name: content
//	  nodes:
//	    - type: recall.seed
//	    - type: rank.centroid
//	      config: {metric: cosine}
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name" json:"name"`
		Nodes []NodeConfig `yaml:"nodes" json:"nodes"`
	} `yaml:"pipeline" json:"pipeline"`
}

// NodeConfig 是链上的一个节点：类型名加上该类型自己的参数。
type NodeConfig struct {
	Type   string         `yaml:"type" json:"type"`
	Config map[string]any `yaml:"config" json:"config"`
}

// Deps 是构建节点时注入的存储句柄。
type Deps struct {
	Store core.PlayStore

	// Derived 可为空；为空时质心不落库
	Derived core.VectorWriter
}

// LoadFile 读取节点链配置，.json 按 JSON 解析，其余按 YAML。
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline yaml: %w", err)
	}
	return cfg, nil
}

func ParseJSON(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline json: %w", err)
	}
	return cfg, nil
}

// BuildPipeline 逐个节点交给 factory 构建；任一节点失败则整体失败。
func (c *Config) BuildPipeline(factory *NodeFactory, deps Deps) (*Pipeline, error) {
	p := &Pipeline{Name: c.Pipeline.Name, Nodes: make([]Node, 0, len(c.Pipeline.Nodes))}
	for i, nc := range c.Pipeline.Nodes {
		node, err := factory.Build(nc.Type, nc.Config, deps)
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, nc.Type, err)
		}
		p.Nodes = append(p.Nodes, node)
	}
	return p, nil
}

// BuilderFunc 由节点参数与依赖构建一个节点。
type BuilderFunc func(params map[string]any, deps Deps) (Node, error)

// NodeFactory 按类型名查找 BuilderFunc。
type NodeFactory struct {
	builders map[string]BuilderFunc
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{builders: map[string]BuilderFunc{}}
}

func (f *NodeFactory) Register(nodeType string, builder BuilderFunc) {
	f.builders[nodeType] = builder
}

func (f *NodeFactory) Build(nodeType string, params map[string]any, deps Deps) (Node, error) {
	build, ok := f.builders[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type %q", nodeType)
	}
	return build(params, deps)
}
