// Package dsl 用 CEL 表达式描述候选过滤条件，例如：
//
//	item.features.user_count >= 10 && !(item.id in ["10", "20"])
//	label.recall_source == "cohort" || rctx.mode == "neighbor"
//
// 可用变量：item（id/name/score/dim/features）、label（item 标签值）、rctx（user_id/mode/params）。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/playrec/core"
)

var env = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
})

// Program 是编译后的布尔表达式，可被多个 goroutine 共享。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译 expr；静态类型不是 bool（或 dyn）时报错。
func Compile(expr string) (*Program, error) {
	e, err := env()
	if err != nil {
		return nil, fmt.Errorf("dsl: cel env: %w", err)
	}
	ast, iss := e.Compile(expr)
	if err := iss.Err(); err != nil {
		return nil, fmt.Errorf("dsl: compile %q: %w", expr, err)
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("dsl: %q yields %s, want bool", expr, out)
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// Match 对单个候选求值。引用不存在的 key 会报错，需要时先用 has(label.x)。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(activation(item, rctx))
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", p.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: %q returned %T, want bool", p.expr, out.Value())
	}
	return b, nil
}

func activation(it *core.Item, rctx *core.RecommendContext) map[string]any {
	item := map[string]any{}
	label := map[string]any{}
	if it != nil {
		features := make(map[string]any, len(it.Features))
		for k, v := range it.Features {
			features[k] = v
		}
		for k, l := range it.Labels {
			label[k] = l.Value
		}
		item = map[string]any{
			"id":       it.ID,
			"name":     it.Name,
			"score":    it.Score,
			"dim":      int64(len(it.Vector)),
			"features": features,
		}
	}

	r := map[string]any{}
	if rctx != nil {
		params := make(map[string]any, len(rctx.Params))
		for k, v := range rctx.Params {
			params[k] = v
		}
		r = map[string]any{
			"user_id": rctx.UserID,
			"mode":    rctx.Mode,
			"params":  params,
		}
	}
	return map[string]any{"item": item, "label": label, "rctx": r}
}
