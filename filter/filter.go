package filter

import (
	"context"

	"github.com/rushteam/playrec/core"
)

// Filter 判定候选是否剔除，返回 true 即剔除。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}
