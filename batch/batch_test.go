package batch

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/metrics"
	"github.com/rushteam/playrec/recommend"
	"github.com/rushteam/playrec/store"
)

func newStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	m := store.NewMemoryStore()
	m.AddGame(store.Game{ItemID: "g1", Name: "Portal", RawVector: "{1,0}"})
	m.AddGame(store.Game{ItemID: "g2", Name: "Half-Life", RawVector: "{0,1}"})
	m.AddGame(store.Game{ItemID: "g3", Name: "Portal 2", RawVector: "{0.9,0.1}"})
	m.AddGame(store.Game{ItemID: "g4", Name: "Dota", RawVector: "{0.2,0.8}"})
	m.AddGame(store.Game{ItemID: "g5", Name: "Quake", RawVector: "{0.7,0.7}"})

	m.AddPlay(core.PlayRecord{UserID: "alice", ItemID: "g1", PlaytimeForever: 100})
	m.AddPlay(core.PlayRecord{UserID: "alice", ItemID: "g2", PlaytimeForever: 50})
	m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g1", PlaytimeForever: 80})
	m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g3", PlaytimeForever: 60})
	m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g4", PlaytimeForever: 10})
	m.AddPlay(core.PlayRecord{UserID: "carol", ItemID: "g2", PlaytimeForever: 90})
	m.AddPlay(core.PlayRecord{UserID: "carol", ItemID: "g4", PlaytimeForever: 70})
	m.AddPlay(core.PlayRecord{UserID: "carol", ItemID: "g5", PlaytimeForever: 5})
	m.AddUser("dave")
	return m
}

func TestRunner_Tally(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	var (
		mu   sync.Mutex
		seen []string
	)
	r := &Runner{
		Service: recommend.NewService(s, nil, recommend.DefaultOptions()),
		Workers: 3,
		Mode:    recommend.ModeContent,
		K:       2,
		OnResult: func(res Result) {
			mu.Lock()
			seen = append(seen, res.UserID)
			mu.Unlock()
		},
	}

	before := testutil.ToFloat64(metrics.BatchUsers.WithLabelValues(metrics.OutcomeNoRecommendation))
	report, err := r.Run(ctx, []string{"alice", "bob", "carol", "dave", "ghost"})
	if err != nil {
		t.Fatalf("Run 失败: %v", err)
	}
	if report.Total != 5 || report.Succeeded != 3 || report.NoRecommendation != 1 {
		t.Errorf("计数错误: %+v", report)
	}
	if !reflect.DeepEqual(report.Failed, map[string]int{core.ErrorCodeNotFound: 1}) {
		t.Errorf("失败计数错误: %v", report.Failed)
	}
	if report.FailedTotal() != 1 || !reflect.DeepEqual(report.FailedCodes(), []string{core.ErrorCodeNotFound}) {
		t.Errorf("FailedTotal / FailedCodes 错误: %v", report.Failed)
	}
	if report.BatchID == "" {
		t.Error("应生成批次 ID")
	}
	if len(seen) != 5 {
		t.Errorf("OnResult 应回调 5 次，实际 %d", len(seen))
	}
	if got := testutil.ToFloat64(metrics.BatchUsers.WithLabelValues(metrics.OutcomeNoRecommendation)); got-before != 1 {
		t.Errorf("no_recommendation 计数增量应为 1，实际 %v", got-before)
	}
}

func TestRunner_AllUsers(t *testing.T) {
	r := &Runner{Service: recommend.NewService(newStore(t), nil, recommend.DefaultOptions())}
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 4 || report.Succeeded != 3 || report.NoRecommendation != 1 {
		t.Errorf("未指定用户时应处理全部 4 个用户: %+v", report)
	}
}

func TestRunner_Consistency(t *testing.T) {
	r := &Runner{
		Service: recommend.NewService(newStore(t), nil, recommend.DefaultOptions()),
		Workers: 2,
	}
	report, err := r.RunConsistency(context.Background(), []string{"alice", "bob", "carol"})
	if err != nil {
		t.Fatal(err)
	}
	// bob 与 carol 的 rho 都是 0.5；alice 只有 2 个物品
	if report.Succeeded != 2 || report.NoRecommendation != 1 {
		t.Errorf("计数错误: %+v", report)
	}
	if report.MeanRho == nil || math.Abs(*report.MeanRho-0.5) > 1e-9 {
		t.Errorf("平均 rho 应为 0.5，实际 %v", report.MeanRho)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Service: recommend.NewService(newStore(t), nil, recommend.DefaultOptions())}
	report, err := r.Run(ctx, []string{"alice"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("取消的上下文应返回 context.Canceled，实际 %v", err)
	}
	if report == nil || report.Total != 1 || report.Duration <= 0 {
		t.Errorf("中断时仍应返回带耗时的部分汇总: %+v", report)
	}
	if _, err := (&Runner{}).Run(context.Background(), nil); err == nil {
		t.Error("没有 Service 时应返回错误")
	}
}

func TestPlayRatio(t *testing.T) {
	index := map[string]int{"g1": 0, "g2": 1, "g3": 2}
	tests := []struct {
		name    string
		records []core.PlayRecord
		want    []float64
	}{
		{
			name:    "rounded to 6 decimals",
			records: []core.PlayRecord{{ItemID: "g1", PlaytimeForever: 100}, {ItemID: "g2", PlaytimeForever: 50}},
			want:    []float64{0.666667, 0.333333, 0},
		},
		{
			name:    "zero total",
			records: []core.PlayRecord{{ItemID: "g3"}},
			want:    []float64{0, 0, 0},
		},
		{
			name:    "negative playtime counts as zero",
			records: []core.PlayRecord{{ItemID: "g1", PlaytimeForever: 100}, {ItemID: "g2", PlaytimeForever: -100}},
			want:    []float64{1, 0, 0},
		},
		{
			name:    "only negative playtime",
			records: []core.PlayRecord{{ItemID: "g1", PlaytimeForever: -5}},
			want:    []float64{0, 0, 0},
		},
		{
			name:    "no records",
			records: nil,
			want:    []float64{0, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlayRatio(index, tt.records); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

// flakyWriter 在第 failAt 次批量写入时失败。
type flakyWriter struct {
	core.BatchVectorWriter
	calls  int
	failAt int
}

func (w *flakyWriter) UpsertDerivedVectors(ctx context.Context, kind core.DerivedKind, vecs map[string][]float64) error {
	w.calls++
	if w.calls == w.failAt {
		return core.NewUnavailable(core.ModuleStore, "store: write failed", errors.New("disk full"))
	}
	return w.BatchVectorWriter.UpsertDerivedVectors(ctx, kind, vecs)
}

func ratioStore() *store.MemoryStore {
	m := store.NewMemoryStore()
	m.AddPlay(core.PlayRecord{UserID: "alice", ItemID: "g1", PlaytimeForever: 100})
	m.AddPlay(core.PlayRecord{UserID: "alice", ItemID: "g2", PlaytimeForever: 50})
	m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g2", PlaytimeForever: 1})
	m.AddPlay(core.PlayRecord{UserID: "bob", ItemID: "g3", PlaytimeForever: 2})
	m.AddPlay(core.PlayRecord{UserID: "zed", ItemID: "g3"})
	return m
}

func TestRatioJob_Run(t *testing.T) {
	ctx := context.Background()
	s := ratioStore()
	report, err := (&RatioJob{Store: s, Writer: s, ChunkSize: 2}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Users != 3 || report.Written != 3 || report.Chunks != 2 || report.Dimension != 3 {
		t.Errorf("汇总错误: %+v", report)
	}

	want := map[string][]float64{
		"alice": {0.666667, 0.333333, 0},
		"bob":   {0, 0.333333, 0.666667},
		"zed":   {0, 0, 0},
	}
	for user, w := range want {
		got, err := s.DerivedVector(ctx, core.DerivedPlayRatio, user)
		if err != nil || !reflect.DeepEqual(got, w) {
			t.Errorf("%s: 期望 %v，实际 %v %v", user, w, got, err)
		}
	}
}

func TestRatioJob_ChunkCommitAndResume(t *testing.T) {
	ctx := context.Background()
	s := ratioStore()
	w := &flakyWriter{BatchVectorWriter: s, failAt: 2}

	report, err := (&RatioJob{Store: s, Writer: w, ChunkSize: 2}).Run(ctx)
	if !core.IsUnavailable(err) {
		t.Fatalf("第二块应写入失败，实际 %v", err)
	}
	if report.Written != 2 || report.Chunks != 1 {
		t.Errorf("第一块应已提交: %+v", report)
	}
	if _, err := s.DerivedVector(ctx, core.DerivedPlayRatio, "zed"); err == nil {
		t.Error("失败的块不应写入")
	}

	w.failAt = 0
	report, err = (&RatioJob{Store: s, Writer: w, ChunkSize: 2, Resume: true, Committed: s}).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Resumed != 2 || report.Written != 1 || report.Chunks != 1 {
		t.Errorf("续跑应只处理剩余用户: %+v", report)
	}
	if _, err := s.DerivedVector(ctx, core.DerivedPlayRatio, "zed"); err != nil {
		t.Errorf("续跑后 zed 应有向量: %v", err)
	}
}
