package rank

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/utils"
	"github.com/rushteam/playrec/score"
	"github.com/rushteam/playrec/vector"
)

// CentroidNode 用种子集合的质心为候选打分（基于内容的推荐）。
//   - 质心 = 种子向量的逐元素均值，只取参考维度的向量
//   - 每个请求都从 rctx.User 重新计算，不跨用户缓存
//   - 分数 = Metric(质心, 候选向量)，默认余弦
//
// Writer 非空时把质心作为派生向量写出（centroid 类型）。
type CentroidNode struct {
	Metric score.Metric
	Writer core.VectorWriter
}

func (n *CentroidNode) Name() string        { return "rank.centroid" }
func (n *CentroidNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *CentroidNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if rctx == nil || rctx.User == nil {
		return nil, core.NewInsufficientData(core.ModuleRank, "rank: centroid needs a seed set")
	}
	centroid, err := SeedCentroid(rctx.User)
	if err != nil {
		return nil, err
	}
	if n.Writer != nil {
		if err := n.Writer.UpsertDerivedVector(ctx, core.DerivedCentroid, rctx.UserID, centroid); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", rctx.UserID).Msg("persist centroid failed")
		}
	}

	ranked, err := Rank(ctx, items, func(it *core.Item) (float64, error) {
		return score.Score(centroid, it.Vector, n.Metric)
	}, -1)
	if err != nil {
		return nil, err
	}
	for _, it := range ranked {
		it.PutLabel("rank_model", utils.NewLabel("centroid."+n.Metric.String(), "rank"))
	}
	return ranked, nil
}

// SeedCentroid 计算用户种子集合的质心；只使用参考维度的向量。
func SeedCentroid(p *core.UserProfile) ([]float64, error) {
	vecs := p.SeedVectors()
	dim := p.Dimension
	if dim <= 0 {
		dim, _ = vector.ModeDimension(vecs)
	}
	same := make([][]float64, 0, len(vecs))
	for _, v := range vecs {
		if len(v) == dim {
			same = append(same, v)
		}
	}
	if len(same) == 0 {
		return nil, core.NewInsufficientData(core.ModuleRank, "rank: user %s has no seed vectors", p.UserID)
	}
	return vector.Centroid(same)
}
