package rank

import (
	"context"
	"sort"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
)

// ScoreFunc 为单个候选打分。返回 DIMENSION_MISMATCH 的候选会被跳过，其它错误中断排序。
type ScoreFunc func(it *core.Item) (float64, error)

// Rank 对候选打分、排序并截断到 k 个。
//
// 排序规则：分数降序，平局按 ItemID 升序。k < 0 表示不截断。
// 输入切片不会被修改；返回的 Item 是新副本。
func Rank(ctx context.Context, pool []*core.Item, fn ScoreFunc, k int) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(pool))
	skipped := 0
	for _, it := range pool {
		if it == nil {
			continue
		}
		s, err := fn(it)
		if err != nil {
			if core.IsDimensionMismatch(err) {
				skipped++
				logging.Ctx(ctx).Warn().
					Str("item_id", it.ID).
					Str("reason", metrics.ReasonDimension).
					Msg("skip candidate that cannot be scored")
				continue
			}
			return nil, err
		}
		c := it.Clone()
		c.Score = s
		out = append(out, c)
	}
	metrics.RecordSkip(metrics.ReasonDimension, skipped)

	SortByScore(out)
	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// SortByScore 按分数降序、ItemID 升序原地排序。
func SortByScore(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}
