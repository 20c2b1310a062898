package recall

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/utils"
)

// neighborFetchLimit 是近邻投票时并发查询存储的上限。
const neighborFetchLimit = 8

// NeighborNode 按游玩比例向量的余弦相似度找出目标用户的近邻（User-based CF 的 u2u 部分）。
//
// 算法流程：
//  1. 用户 → 游玩比例向量（由 batch.RatioJob 离线产出）
//  2. 计算与其他用户的余弦相似度（存储层完成）
//  3. 取 TopK 相似用户写入 rctx.User.Neighbors
//
// 输入 items 原样透传。目标用户没有比例向量时返回 INSUFFICIENT_DATA。
type NeighborNode struct {
	Store core.PlayStore

	// K 近邻用户数，<=0 时使用 rctx 参数 neighbor_k 或默认值
	K int
}

func (n *NeighborNode) Name() string {
	return "recall.neighbors"
}

func (n *NeighborNode) Kind() pipeline.Kind {
	return pipeline.KindRecall
}

func (n *NeighborNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Store == nil || rctx == nil || rctx.UserID == "" {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: neighbor node needs a store and a user")
	}
	k := n.K
	if k <= 0 {
		k = rctx.ParamInt(core.ParamNeighborK, (&core.DefaultRecommendConfig{}).DefaultNeighborK())
	}
	neighbors, err := n.Store.NeighborUserIDs(ctx, rctx.UserID, k)
	if err != nil {
		return nil, err
	}
	rctx.GetUserProfile().Neighbors = neighbors

	logging.Ctx(ctx).Debug().
		Str("user_id", rctx.UserID).
		Int("neighbors", len(neighbors)).
		Msg("neighbors resolved")
	return items, nil
}

// NeighborVoteNode 是 u2i 部分：每个近邻贡献自己最常玩的 Top 个物品，
// 目标用户已玩（按 Mode/Scope）的物品不参与；候选按被推荐次数和近邻总时长计票。
//
// 写入特征：
//   - neighbor_count：推荐该物品的近邻数
//   - playtime_total：这些近邻在该物品上的 playtime_forever 之和
type NeighborVoteNode struct {
	Store core.PlayStore

	// Top 每个近邻贡献的物品数，<=0 时使用默认值
	Top int

	// Mode 排除方式，默认按 ID
	Mode filter.Mode

	// Scope 排除范围，默认全部已玩
	Scope filter.Scope
}

func (n *NeighborVoteNode) Name() string {
	return "recall.neighbor_vote"
}

func (n *NeighborVoteNode) Kind() pipeline.Kind {
	return pipeline.KindRecall
}

func (n *NeighborVoteNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return n.Recall(ctx, rctx)
}

func (n *NeighborVoteNode) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if n.Store == nil || rctx == nil {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: neighbor vote node needs a store")
	}
	profile := rctx.GetUserProfile()
	if len(profile.Neighbors) == 0 {
		return nil, core.NewInsufficientData(core.ModuleRecall, "recall: user %s has no neighbors", rctx.UserID)
	}

	top := n.Top
	if top <= 0 {
		top = (&core.DefaultRecommendConfig{}).DefaultNeighborTop()
	}
	ex := (&filter.PlayedFilter{Mode: n.Mode, Scope: n.Scope}).Exclusion(profile)

	type vote struct {
		name     string
		count    int
		playtime int64
	}
	votes := make(map[string]*vote)
	perNeighbor, err := n.neighborTops(ctx, profile.Neighbors, top)
	if err != nil {
		return nil, err
	}
	for _, rows := range perNeighbor {
		for _, row := range rows {
			if ex.Excludes(row.ItemID, row.Name) {
				continue
			}
			v, ok := votes[row.ItemID]
			if !ok {
				v = &vote{name: row.Name}
				votes[row.ItemID] = v
			}
			v.count++
			v.playtime += row.PlaytimeForever
		}
	}
	if len(votes) == 0 {
		return nil, core.NewEmptyPool(core.ModuleRecall, "recall: neighbors contributed no candidates")
	}

	ids := make([]string, 0, len(votes))
	for id := range votes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// 向量尽量补齐，供匹配报告使用；解析失败的物品仍参与计票
	vectors := make(map[string][]float64, len(ids))
	rows, err := n.Store.ItemsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if it, ok := RowToItem(ctx, row); ok {
			vectors[row.ItemID] = it.Vector
		}
	}

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		v := votes[id]
		it := core.NewItem(id)
		it.Name = v.name
		it.Vector = vectors[id]
		it.SetFeature(core.FeatureNeighborCount, float64(v.count))
		it.SetFeature(core.FeaturePlaytimeTotal, float64(v.playtime))
		it.PutLabel("recall_source", utils.NewLabel("neighbor_vote", "recall"))
		out = append(out, it)
	}
	return out, nil
}

// neighborTops 并发拉取每个近邻的 top 物品，结果按近邻顺序返回。
func (n *NeighborVoteNode) neighborTops(ctx context.Context, neighbors []string, top int) ([][]core.Row, error) {
	out := make([][]core.Row, len(neighbors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(neighborFetchLimit)
	for i, neighbor := range neighbors {
		g.Go(func() error {
			rows, err := n.Store.TopItemsByPlaytime(gctx, neighbor, top, core.OrderPlaytime)
			if err != nil {
				return err
			}
			out[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
