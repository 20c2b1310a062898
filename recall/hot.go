package recall

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/pipeline"
)

// Hot 是全局榜单召回源：全目录按总时长或热度（拥有人数）排序的前 K 个物品。
// 请求带有用户画像（先运行了 SeedNode）时，按 Mode/Scope 排除用户已玩的物品。
// Hot 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Hot struct {
	Builder *TopKBuilder

	// K 榜单长度，<=0 时使用 rctx 参数 k 或默认值
	K int

	// Order 排序方式：playtime / combined / popularity
	Order core.Order

	Mode  filter.Mode
	Scope filter.Scope
}

func (r *Hot) Name() string        { return "recall.global" }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Hot) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Builder == nil {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: global node needs a store")
	}
	k := r.K
	if k <= 0 {
		k = rctx.ParamInt(core.ParamK, (&core.DefaultRecommendConfig{}).DefaultK())
	}

	ex := filter.NewExclusion(r.Mode)
	if rctx != nil && rctx.User != nil {
		ex = (&filter.PlayedFilter{Mode: r.Mode, Scope: r.Scope}).Exclusion(rctx.User)
	}
	items, err := r.Builder.Global(ctx, k, r.Order, ex)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.Score = it.Feature(orderFeature(r.Order))
	}
	return items, nil
}

func orderFeature(o core.Order) string {
	switch o {
	case core.OrderPopularity:
		return core.FeatureUserCount
	case core.OrderCombined:
		return core.FeaturePlaytimeTotal
	default:
		return core.FeaturePlaytimeForever
	}
}
