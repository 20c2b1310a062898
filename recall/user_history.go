package recall

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/utils"
	"github.com/rushteam/playrec/vector"
)

// SeedNode 基于用户历史装载“喜欢”集合（种子集合），是每条推荐链路的第一个节点。
//
// 它把以下内容写入 rctx.User，供后续节点读取：
//   - Seeds：按 Order 排序的前 K 个物品（带向量）
//   - Played / PlayedNames：用户玩过的全部物品，用于排除
//   - Dimension：种子向量的众数维度，作为候选池的参考维度
//
// 返回值是种子集合本身，因此 SeedNode 也可以作为独立的召回源使用。
type SeedNode struct {
	Builder *TopKBuilder

	// K 种子集合大小，<=0 时使用 rctx 参数 seed_k 或默认值
	K int

	// Order 排序方式，默认按 playtime_forever
	Order core.Order
}

// ParamSeedK 是覆盖种子集合大小的请求参数。
const ParamSeedK = "seed_k"

func (n *SeedNode) Name() string {
	return "recall.seed"
}

func (n *SeedNode) Kind() pipeline.Kind {
	return pipeline.KindRecall
}

func (n *SeedNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return n.Recall(ctx, rctx)
}

func (n *SeedNode) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if n.Builder == nil || rctx == nil || rctx.UserID == "" {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: seed node needs a store and a user")
	}

	k := n.K
	if k <= 0 {
		k = rctx.ParamInt(ParamSeedK, (&core.DefaultRecommendConfig{}).DefaultSeedK())
	}

	seeds, err := n.Builder.TopK(ctx, rctx.UserID, k, n.Order)
	if err != nil {
		return nil, err
	}

	// 已玩集合覆盖用户全部物品，不只是种子
	played, err := n.Builder.Store.UserItems(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}

	profile := rctx.GetUserProfile()
	profile.Seeds = seeds
	for _, row := range played {
		profile.AddPlayed(row.ItemID, row.Name)
	}
	if dim, ok := vector.ModeDimension(profile.SeedVectors()); ok {
		profile.Dimension = dim
	}

	for _, it := range seeds {
		it.PutLabel("seed", utils.NewLabel("true", n.Name()))
	}

	logging.Ctx(ctx).Debug().
		Str("user_id", rctx.UserID).
		Int("seeds", len(seeds)).
		Int("played", len(profile.Played)).
		Int("dimension", profile.Dimension).
		Msg("seed set loaded")

	return seeds, nil
}
