package filter

import (
	"context"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/dsl"
)

// ExprFilter 使用 CEL 表达式过滤：表达式为 true 的物品被保留（Keep=true）或移除（Keep=false）。
//
//	&ExprFilter{Expr: `item.features.user_count >= 5.0`, Keep: true}
type ExprFilter struct {
	Expr string
	Keep bool

	prg *dsl.Program
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string, keep bool) (*ExprFilter, error) {
	prg, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{Expr: expr, Keep: keep, prg: prg}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	prg := f.prg
	if prg == nil {
		var err error
		if prg, err = dsl.Compile(f.Expr); err != nil {
			return false, err
		}
	}
	ok, err := prg.Match(item, rctx)
	if err != nil {
		return false, err
	}
	if f.Keep {
		return !ok, nil
	}
	return ok, nil
}
