package rank

import (
	"context"
	"sort"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/utils"
)

// FrequencyNode 按近邻投票排序：(neighbor_count, playtime_total) 降序，平局按 ItemID 升序。
// Score 设为 neighbor_count。
type FrequencyNode struct{}

func (n *FrequencyNode) Name() string        { return "rank.frequency" }
func (n *FrequencyNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *FrequencyNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		c := it.Clone()
		c.Score = c.Feature(core.FeatureNeighborCount)
		c.PutLabel("rank_model", utils.NewLabel("frequency", "rank"))
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pa, pb := a.Feature(core.FeaturePlaytimeTotal), b.Feature(core.FeaturePlaytimeTotal); pa != pb {
			return pa > pb
		}
		return a.ID < b.ID
	})
	return out, nil
}
