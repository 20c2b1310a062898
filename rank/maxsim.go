package rank

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/utils"
	"github.com/rushteam/playrec/score"
)

// MaxSimNode 为每个候选取与种子集合中最相似物品的相似度作为分数。
// 与任何种子都无法比较（维度不同）的候选被跳过。
type MaxSimNode struct {
	Metric score.Metric
}

func (n *MaxSimNode) Name() string        { return "rank.maxsim" }
func (n *MaxSimNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *MaxSimNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if rctx == nil || rctx.User == nil {
		return nil, core.NewInsufficientData(core.ModuleRank, "rank: maxsim needs a seed set")
	}
	seeds := rctx.User.SeedVectors()
	if len(seeds) == 0 {
		return nil, core.NewInsufficientData(core.ModuleRank, "rank: user %s has no seed vectors", rctx.UserID)
	}

	ranked, err := Rank(ctx, items, func(it *core.Item) (float64, error) {
		best, found := 0.0, false
		var lastErr error
		for _, seed := range seeds {
			s, err := score.Score(seed, it.Vector, n.Metric)
			if err != nil {
				lastErr = err
				continue
			}
			if !found || s > best {
				best, found = s, true
			}
		}
		if !found {
			return 0, lastErr
		}
		return best, nil
	}, -1)
	if err != nil {
		return nil, err
	}
	for _, it := range ranked {
		it.PutLabel("rank_model", utils.NewLabel("maxsim."+n.Metric.String(), "rank"))
	}
	return ranked, nil
}
