package recall

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
	"github.com/rushteam/playrec/pkg/utils"
	"github.com/rushteam/playrec/vector"
)

// TopKBuilder 从 PlayStore 构造“用户最常玩的 K 个物品”集合。
//
// 排序规则见 core.Order，平局一律按 ItemID 升序，因此同样的数据总是得到同样的结果。
// 向量无法解析的行会被跳过并记录（不影响其余物品）。
type TopKBuilder struct {
	Store core.PlayStore
}

// NewTopKBuilder 创建 TopKBuilder。
func NewTopKBuilder(store core.PlayStore) *TopKBuilder {
	return &TopKBuilder{Store: store}
}

// TopK 返回用户按 order 排序的前 k 个物品。
// 用户拥有的物品少于 k 时返回全部；用户不存在时返回 NOT_FOUND。
func (b *TopKBuilder) TopK(ctx context.Context, userID string, k int, order core.Order) ([]*core.Item, error) {
	if k < 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: k must be non-negative")
	}
	ok, err := b.Store.HasUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NewNotFound(core.ModuleRecall, "recall: user %s not found", userID)
	}
	if k == 0 {
		return []*core.Item{}, nil
	}

	rows, err := b.Store.TopItemsByPlaytime(ctx, userID, k, order)
	if err != nil {
		return nil, err
	}
	out := collect(ctx, nil, rows, k)
	if len(out) < k && len(rows) == k {
		// 有行解析失败：按同样的排序读取全部物品，从第 k 行之后补齐
		all, err := b.Store.UserItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		core.SortRows(all, order)
		if len(all) > len(rows) {
			out = collect(ctx, out, all[len(rows):], k)
		}
	}
	return out, nil
}

// Global 返回全目录按 order 排序的前 k 个物品；排除集合在截断之前生效。
func (b *TopKBuilder) Global(ctx context.Context, k int, order core.Order, ex filter.Exclusion) ([]*core.Item, error) {
	if k < 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: k must be non-negative")
	}
	rows, err := b.Store.AllItemVectors(ctx)
	if err != nil {
		return nil, err
	}
	core.SortRows(rows, order)

	out := make([]*core.Item, 0, min(k, len(rows)))
	excluded := 0
	for _, row := range rows {
		if len(out) == k {
			break
		}
		if ex.Excludes(row.ItemID, row.Name) {
			excluded++
			continue
		}
		it, ok := RowToItem(ctx, row)
		if !ok {
			continue
		}
		it.PutLabel("recall_source", utils.NewLabel("global."+order.String(), "recall"))
		out = append(out, it)
	}
	metrics.RecordSkip(metrics.ReasonExcluded, excluded)
	return out, nil
}

func collect(ctx context.Context, out []*core.Item, rows []core.Row, k int) []*core.Item {
	if out == nil {
		out = make([]*core.Item, 0, min(k, len(rows)))
	}
	for _, row := range rows {
		if len(out) == k {
			break
		}
		it, ok := RowToItem(ctx, row)
		if !ok {
			continue
		}
		it.PutLabel("recall_source", utils.NewLabel("topk", "recall"))
		out = append(out, it)
	}
	return out
}

// RowToItem 把存储行转换为 Item：解析向量并写入时长/热度特征。
// 向量无法解析时返回 false，并记录日志与计数。
func RowToItem(ctx context.Context, row core.Row) (*core.Item, bool) {
	vec, err := vector.Normalize(row.RawVector)
	if err != nil {
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("item_id", row.ItemID).
			Str("reason", metrics.ReasonParse).
			Msg("skip row with unparseable vector")
		metrics.RecordSkip(metrics.ReasonParse, 1)
		return nil, false
	}
	it := core.NewItem(row.ItemID)
	it.Name = row.Name
	it.Vector = vec
	it.SetFeature(core.FeaturePlaytimeForever, float64(row.PlaytimeForever))
	it.SetFeature(core.FeaturePlaytime2Weeks, float64(row.Playtime2Weeks))
	it.SetFeature(core.FeaturePlaytimeTotal, float64(row.PlaytimeTotal()))
	it.SetFeature(core.FeatureUserCount, float64(row.UserCount))
	return it, true
}
