package rerank

import (
	"context"
	"testing"

	"github.com/rushteam/playrec/core"
)

func TestTopNNode(t *testing.T) {
	items := []*core.Item{core.NewItem("a"), core.NewItem("b"), core.NewItem("c")}

	tests := []struct {
		name string
		n    int
		rctx *core.RecommendContext
		want int
	}{
		{"truncate", 2, nil, 2},
		{"n larger than items", 10, nil, 3},
		{"param k", 0, &core.RecommendContext{Params: map[string]any{core.ParamK: 1}}, 1},
		{"param k zero", 0, &core.RecommendContext{Params: map[string]any{core.ParamK: 0}}, 0},
		{"default k", 0, &core.RecommendContext{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TopNNode{N: tt.n}).Process(context.Background(), tt.rctx, items)
			if err != nil {
				t.Fatal(err)
			}
			if len(out) != tt.want {
				t.Errorf("期望 %d 个，实际 %d 个", tt.want, len(out))
			}
			for i, it := range out {
				if it.ID != items[i].ID {
					t.Errorf("截断不应改变顺序: %d = %s", i, it.ID)
				}
			}
		})
	}
}
