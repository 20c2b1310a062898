package filter

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
)

// FilterNode 依次套用 Filters，命中任意一个即剔除候选。
// 全部剔除时返回 EMPTY_POOL，除非 AllowEmpty。
type FilterNode struct {
	Filters    []Filter
	AllowEmpty bool
}

func (n *FilterNode) Name() string        { return "filter.node" }
func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(ctx context.Context, rctx *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	kept := items[:0:0]
	dropped := 0
	for _, it := range items {
		if it == nil {
			continue
		}
		if n.hit(ctx, rctx, it) {
			dropped++
			continue
		}
		kept = append(kept, it)
	}

	metrics.RecordSkip(metrics.ReasonExcluded, dropped)
	if len(kept) == 0 && !n.AllowEmpty {
		return nil, core.NewEmptyPool(core.ModuleRecall, "filter: all candidates filtered")
	}
	return kept, nil
}

// hit 报告是否有过滤器命中；出错的过滤器视为未命中。
func (n *FilterNode) hit(ctx context.Context, rctx *core.RecommendContext, it *core.Item) bool {
	for _, f := range n.Filters {
		drop, err := f.ShouldFilter(ctx, rctx, it)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("filter", f.Name()).
				Str("item_id", it.ID).
				Msg("filter failed, keeping item")
			continue
		}
		if drop {
			return true
		}
	}
	return false
}
