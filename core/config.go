package core

// RecommendConfig 是推荐相关的配置接口，用于提供默认值。
type RecommendConfig interface {
	// DefaultSeedK 返回默认的种子集合大小（用户 TopN）
	DefaultSeedK() int

	// DefaultK 返回默认的推荐条数
	DefaultK() int

	// DefaultNeighborK 返回默认的近邻用户数
	DefaultNeighborK() int

	// DefaultNeighborTop 返回每个近邻贡献的物品数
	DefaultNeighborTop() int

	// DefaultMinCommonItems 返回一致性计算所需的最少物品数
	DefaultMinCommonItems() int
}

// DefaultRecommendConfig 是默认的推荐配置实现。
type DefaultRecommendConfig struct{}

var _ RecommendConfig = (*DefaultRecommendConfig)(nil)

func (c *DefaultRecommendConfig) DefaultSeedK() int {
	return 10
}

func (c *DefaultRecommendConfig) DefaultK() int {
	return 10
}

func (c *DefaultRecommendConfig) DefaultNeighborK() int {
	return 20
}

func (c *DefaultRecommendConfig) DefaultNeighborTop() int {
	return 5
}

func (c *DefaultRecommendConfig) DefaultMinCommonItems() int {
	return 3
}
