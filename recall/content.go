package recall

import (
	"context"
	"sort"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
	"github.com/rushteam/playrec/pkg/utils"
	"github.com/rushteam/playrec/vector"
)

// PoolRequest 描述一次候选池构建。
type PoolRequest struct {
	// Exclusion 排除集合（按 ID 或按展示名）
	Exclusion filter.Exclusion

	// Cohort 非 nil 时候选池为这些用户拥有物品的并集；nil 时为全目录
	Cohort []string

	// Dimension 参考维度；<=0 时取 References 向量的众数维度
	Dimension int

	// References 参考集合（通常是种子集合）
	References []*core.Item
}

// PoolBuilder 是基于内容的候选池构建器。
//
// 核心思想："用户喜欢的物品具有某种向量特征，候选必须能与之比较"
//
// 处理流程：
//  1. 读取全目录或近邻用户的物品并集
//  2. 剔除排除集合中的物品
//  3. 解析向量，剔除无法解析、空向量、维度不一致的物品（按原因计数）
//  4. 按 ItemID 升序输出
type PoolBuilder struct {
	Store core.PlayStore
}

// NewPoolBuilder 创建 PoolBuilder。
func NewPoolBuilder(store core.PlayStore) *PoolBuilder {
	return &PoolBuilder{Store: store}
}

// Build 构建候选池；过滤后为空时返回 EMPTY_POOL。
func (b *PoolBuilder) Build(ctx context.Context, req PoolRequest) ([]*core.Item, error) {
	var (
		rows []core.Row
		err  error
	)
	if req.Cohort != nil {
		rows, err = b.Store.CohortItems(ctx, req.Cohort)
	} else {
		rows, err = b.Store.AllItemVectors(ctx)
	}
	if err != nil {
		return nil, err
	}

	dim := req.Dimension
	if dim <= 0 {
		refs := make([][]float64, 0, len(req.References))
		for _, it := range req.References {
			refs = append(refs, it.Vector)
		}
		dim, _ = vector.ModeDimension(refs)
	}

	log := logging.Ctx(ctx)
	var excluded, empty, mismatched int
	candidates := make([]*core.Item, 0, len(rows))
	for _, row := range rows {
		if req.Exclusion.Excludes(row.ItemID, row.Name) {
			excluded++
			continue
		}
		it, ok := RowToItem(ctx, row)
		if !ok {
			continue
		}
		if len(it.Vector) == 0 {
			empty++
			continue
		}
		candidates = append(candidates, it)
	}

	// 没有参考维度时取候选池自身的众数维度
	if dim <= 0 {
		vecs := make([][]float64, len(candidates))
		for i, it := range candidates {
			vecs[i] = it.Vector
		}
		dim, _ = vector.ModeDimension(vecs)
	}

	out := candidates[:0]
	for _, it := range candidates {
		if len(it.Vector) != dim {
			mismatched++
			log.Warn().
				Str("item_id", it.ID).
				Str("reason", metrics.ReasonDimension).
				Int("want", dim).
				Int("got", len(it.Vector)).
				Msg("skip candidate with mismatched dimension")
			continue
		}
		it.PutLabel("recall_source", utils.NewLabel("pool", "recall"))
		out = append(out, it)
	}

	metrics.RecordSkip(metrics.ReasonExcluded, excluded)
	metrics.RecordSkip(metrics.ReasonNoFeatureData, empty)
	metrics.RecordSkip(metrics.ReasonDimension, mismatched)

	log.Debug().
		Int("rows", len(rows)).
		Int("excluded", excluded).
		Int("no_feature_data", empty).
		Int("dimension_mismatch", mismatched).
		Int("pool", len(out)).
		Int("dimension", dim).
		Msg("candidate pool built")

	if len(out) == 0 {
		return nil, core.NewEmptyPool(core.ModuleRecall, "recall: candidate pool is empty")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PoolNode 在 Pipeline 中构建候选池，参考集合与排除集合来自 SeedNode 装载的用户画像。
type PoolNode struct {
	Builder *PoolBuilder

	// Mode 排除方式（ID / 展示名）
	Mode filter.Mode

	// Scope 排除范围（全部已玩 / 仅种子集合）
	Scope filter.Scope

	// UseNeighbors 为 true 时候选池限定为近邻用户拥有的物品（需要先运行 NeighborNode）
	UseNeighbors bool
}

func (n *PoolNode) Name() string {
	return "recall.pool"
}

func (n *PoolNode) Kind() pipeline.Kind {
	return pipeline.KindRecall
}

func (n *PoolNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return n.Recall(ctx, rctx)
}

func (n *PoolNode) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if n.Builder == nil || rctx == nil {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: pool node needs a store")
	}
	profile := rctx.GetUserProfile()

	played := &filter.PlayedFilter{Mode: n.Mode, Scope: n.Scope}
	req := PoolRequest{
		Exclusion:  played.Exclusion(profile),
		Dimension:  profile.Dimension,
		References: profile.Seeds,
	}
	if n.UseNeighbors {
		req.Cohort = append([]string{}, profile.Neighbors...)
	}
	return n.Builder.Build(ctx, req)
}
