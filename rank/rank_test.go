package rank

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/score"
)

func item(id string, vec ...float64) *core.Item {
	it := core.NewItem(id)
	it.Vector = vec
	return it
}

func ids(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func profile(seeds ...*core.Item) *core.RecommendContext {
	p := core.NewUserProfile("u")
	p.Seeds = seeds
	p.Dimension = 2
	return &core.RecommendContext{UserID: "u", User: p}
}

func TestRank(t *testing.T) {
	ctx := context.Background()
	pool := []*core.Item{item("c"), item("a"), item("b"), item("d")}
	scores := map[string]float64{"a": 0.5, "b": 0.9, "c": 0.5, "d": 0.1}

	tests := []struct {
		name string
		k    int
		want []string
	}{
		{"all", -1, []string{"b", "a", "c", "d"}},
		{"truncate", 2, []string{"b", "a"}},
		{"k zero", 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rank(ctx, pool, func(it *core.Item) (float64, error) {
				return scores[it.ID], nil
			}, tt.k)
			if err != nil {
				t.Fatal(err)
			}
			if got := ids(got); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
	if pool[0].Score != 0 {
		t.Error("Rank 不应修改输入")
	}
}

func TestRank_SkipsMismatchAndStopsOnOtherErrors(t *testing.T) {
	ctx := context.Background()
	pool := []*core.Item{item("a"), item("b")}

	got, err := Rank(ctx, pool, func(it *core.Item) (float64, error) {
		if it.ID == "a" {
			return 0, core.NewDimensionMismatch(core.ModuleScore, 2, 3)
		}
		return 1, nil
	}, -1)
	if err != nil || !reflect.DeepEqual(ids(got), []string{"b"}) {
		t.Errorf("维度不一致的候选应被跳过: %v %v", ids(got), err)
	}

	boom := errors.New("boom")
	if _, err := Rank(ctx, pool, func(*core.Item) (float64, error) { return 0, boom }, -1); !errors.Is(err, boom) {
		t.Errorf("其它错误应返回，实际 %v", err)
	}
}

type recordingWriter struct {
	kind core.DerivedKind
	id   string
	vec  []float64
}

func (w *recordingWriter) UpsertDerivedVector(_ context.Context, kind core.DerivedKind, id string, vec []float64) error {
	w.kind, w.id, w.vec = kind, id, vec
	return nil
}

func TestCentroidNode(t *testing.T) {
	ctx := context.Background()
	rctx := profile(item("s1", 1, 0), item("s2", 0, 1), item("s3", 1, 0, 0))
	pool := []*core.Item{item("x", 1, 1), item("y", 1, 0), item("z", 1, 0, 0), item("w", -1, -1)}

	w := &recordingWriter{}
	out, err := (&CentroidNode{Metric: score.Cosine, Writer: w}).Process(ctx, rctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(out); !reflect.DeepEqual(got, []string{"x", "y", "w"}) {
		t.Errorf("期望 [x y w]，实际 %v", got)
	}
	if math.Abs(out[0].Score-1) > 1e-9 {
		t.Errorf("x 与质心同向，分数应为 1，实际 %v", out[0].Score)
	}
	if w.kind != core.DerivedCentroid || w.id != "u" || !reflect.DeepEqual(w.vec, []float64{0.5, 0.5}) {
		t.Errorf("质心写出错误: %+v", w)
	}

	_, err = (&CentroidNode{}).Process(ctx, profile(item("s", 1, 0, 0)), pool)
	if !core.IsInsufficientData(err) {
		t.Errorf("没有参考维度的种子向量时应返回 INSUFFICIENT_DATA，实际 %v", err)
	}
}

func TestCentroidNode_RecomputedPerUser(t *testing.T) {
	ctx := context.Background()
	node := &CentroidNode{}
	pool := []*core.Item{item("x", 1, 0), item("y", 0, 1)}

	a, _ := node.Process(ctx, profile(item("s", 1, 0)), pool)
	b, _ := node.Process(ctx, profile(item("s", 0, 1)), pool)
	if a[0].ID != "x" || b[0].ID != "y" {
		t.Errorf("质心应按用户重新计算: %v %v", ids(a), ids(b))
	}
}

func TestMaxSimNode(t *testing.T) {
	ctx := context.Background()
	rctx := profile(item("s1", 1, 0), item("s2", 0, 1))
	pool := []*core.Item{item("a", 1, 1), item("b", 0, 1), item("c", 1, 2, 3)}

	out, err := (&MaxSimNode{}).Process(ctx, rctx, pool)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(out); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("期望 [b a]，实际 %v", got)
	}
	if math.Abs(out[1].Score-math.Sqrt2/2) > 1e-9 {
		t.Errorf("a 的分数应为 √2/2，实际 %v", out[1].Score)
	}
}

func TestFrequencyNode(t *testing.T) {
	mk := func(id string, count, playtime float64) *core.Item {
		it := core.NewItem(id)
		it.SetFeature(core.FeatureNeighborCount, count)
		it.SetFeature(core.FeaturePlaytimeTotal, playtime)
		return it
	}
	pool := []*core.Item{mk("a", 1, 500), mk("b", 2, 10), mk("c", 2, 30), mk("d", 1, 500)}

	out, err := (&FrequencyNode{}).Process(context.Background(), nil, pool)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(out); !reflect.DeepEqual(got, []string{"c", "b", "a", "d"}) {
		t.Errorf("期望 [c b a d]，实际 %v", got)
	}
	if out[0].Score != 2 {
		t.Errorf("Score 应为 neighbor_count，实际 %v", out[0].Score)
	}
}
