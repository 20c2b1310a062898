package rerank

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在排序后截取前 N 个物品。
// 通常在排序（Rank）节点之后使用，输出即为最终推荐列表。
//
// 示例：
//
//	p := pipeline.New("content",
//	    &recall.SeedNode{...},
//	    &recall.PoolNode{...},
//	    &rank.CentroidNode{},
//	    &rerank.TopNNode{N: 10},
//	)
type TopNNode struct {
	// N 要保留的物品数量
	// 如果 N <= 0，使用请求参数 k（缺省为默认推荐条数）
	// 如果 N > len(items)，则返回所有物品
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 {
		limit = rctx.ParamInt(core.ParamK, (&core.DefaultRecommendConfig{}).DefaultK())
	}
	if limit < 0 {
		return nil, core.NewDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, "rerank: k must be non-negative")
	}

	// 如果物品数量小于等于 N，直接返回
	if len(items) <= limit {
		return items, nil
	}

	// 截取前 N 个物品
	return items[:limit], nil
}
