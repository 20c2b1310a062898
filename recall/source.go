package recall

import (
	"context"

	"github.com/rushteam/playrec/core"
)

// Source 表示一个可复用的召回源（种子集合/候选池/近邻投票/全局榜单）。
// 召回节点同时实现 Source 和 pipeline.Node，可以单独调用，也可以挂在 Pipeline 上。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

var (
	_ Source = (*SeedNode)(nil)
	_ Source = (*PoolNode)(nil)
	_ Source = (*NeighborVoteNode)(nil)
	_ Source = (*Hot)(nil)
)
