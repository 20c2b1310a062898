package recommend

import (
	"fmt"
	"strings"

	"github.com/rushteam/playrec/config"
	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/match"
	"github.com/rushteam/playrec/score"
)

// Mode 是推荐方式。
type Mode string

const (
	// ModeContent 种子质心与候选池的内容相似度
	ModeContent Mode = "content"
	// ModeNeighbor 近邻用户投票
	ModeNeighbor Mode = "neighbor"
	// ModeMaxSim 候选与任一种子的最大相似度
	ModeMaxSim Mode = "maxsim"
)

// ParseMode 解析推荐方式。
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeContent:
		return ModeContent, nil
	case ModeNeighbor:
		return ModeNeighbor, nil
	case ModeMaxSim:
		return ModeMaxSim, nil
	}
	return ModeContent, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, fmt.Sprintf("recommend: unknown mode %q", s))
}

// Options 是推荐服务参数。
type Options struct {
	// SeedK 种子集合大小
	SeedK int
	// K 默认推荐条数
	K int
	// NeighborK 近邻用户数
	NeighborK int
	// NeighborTop 每个近邻贡献的物品数
	NeighborTop int
	// MinCommon 一致性计算所需的最少物品数
	MinCommon int

	Metric    score.Metric
	Strategy  match.Strategy
	Exclusion filter.Mode
	Scope     filter.Scope

	// NeighborPool 为 true 时 content / maxsim 的候选池限定为近邻用户拥有的物品
	NeighborPool bool
}

// DefaultOptions 返回默认参数。
func DefaultOptions() Options {
	d := &core.DefaultRecommendConfig{}
	return Options{
		SeedK:       d.DefaultSeedK(),
		K:           d.DefaultK(),
		NeighborK:   d.DefaultNeighborK(),
		NeighborTop: d.DefaultNeighborTop(),
		MinCommon:   d.DefaultMinCommonItems(),
		Metric:      score.Cosine,
		Strategy:    match.Optimal,
		Exclusion:   filter.ByID,
		Scope:       filter.ScopePlayed,
	}
}

// OptionsFromConfig 把配置节转换为服务参数。
func OptionsFromConfig(c config.RecommendConfig) (Options, error) {
	opts := Options{
		SeedK:       c.SeedK,
		K:           c.K,
		NeighborK:   c.NeighborK,
		NeighborTop: c.NeighborTop,
		MinCommon:   c.MinCommon,
	}
	var err error
	if opts.Metric, err = score.ParseMetric(c.Metric); err != nil {
		return opts, err
	}
	if opts.Strategy, err = match.ParseStrategy(c.Strategy); err != nil {
		return opts, err
	}
	if opts.Exclusion, err = filter.ParseMode(c.Exclusion); err != nil {
		return opts, err
	}
	if opts.Scope, err = filter.ParseScope(c.Scope); err != nil {
		return opts, err
	}
	opts.NeighborPool = c.NeighborPool
	return opts, nil
}
