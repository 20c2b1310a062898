package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/playrec/core"
)

func TestDerivedVectors_KVBackends(t *testing.T) {
	ctx := context.Background()

	badgerKV, err := NewBadgerStore("")
	if err != nil {
		t.Fatalf("打开 Badger 失败: %v", err)
	}
	backends := []core.Store{NewMemoryKV(), badgerKV}

	for _, kv := range backends {
		t.Run(kv.Name(), func(t *testing.T) {
			d := NewDerivedVectors(kv, "test", 0)
			defer d.Close()

			err := d.UpsertDerivedVectors(ctx, core.DerivedPlayRatio, map[string][]float64{
				"alice": {0.5, 0.5},
				"bob":   {1, 0},
			})
			if err != nil {
				t.Fatal(err)
			}
			if err := d.UpsertDerivedVector(ctx, core.DerivedCentroid, "alice", []float64{0.25, 0.75}); err != nil {
				t.Fatal(err)
			}

			vec, err := d.DerivedVector(ctx, core.DerivedPlayRatio, "bob")
			if err != nil || !reflect.DeepEqual(vec, []float64{1, 0}) {
				t.Errorf("play_ratio bob = %v, %v", vec, err)
			}
			vec, err = d.DerivedVector(ctx, core.DerivedCentroid, "alice")
			if err != nil || !reflect.DeepEqual(vec, []float64{0.25, 0.75}) {
				t.Errorf("centroid alice = %v, %v", vec, err)
			}
			if _, err := d.DerivedVector(ctx, core.DerivedCentroid, "bob"); !core.IsStoreNotFound(err) {
				t.Errorf("期望 NOT_FOUND，实际 %v", err)
			}

			raw, err := kv.Get(ctx, "test:play_ratio:alice")
			if err != nil || len(raw) == 0 {
				t.Errorf("key 格式应为 prefix:kind:id: %v", err)
			}
		})
	}
}

type failingWriter struct{ calls int }

func (f *failingWriter) UpsertDerivedVector(ctx context.Context, kind core.DerivedKind, id string, vec []float64) error {
	f.calls++
	return core.NewUnavailable(core.ModuleStore, "mirror down", nil)
}

func TestTeeWriter(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore()
	mirrorKV := NewMemoryKV()
	defer mirrorKV.Close()
	mirror := NewDerivedVectors(mirrorKV, "", 0)

	tee := &TeeWriter{Primary: primary, Mirrors: []core.VectorWriter{mirror}}
	vecs := map[string][]float64{"u1": {1, 2}, "u2": {3, 4}}
	if err := tee.UpsertDerivedVectors(ctx, core.DerivedPlayRatio, vecs); err != nil {
		t.Fatal(err)
	}
	for id, want := range vecs {
		if got, _ := primary.DerivedVector(ctx, core.DerivedPlayRatio, id); !reflect.DeepEqual(got, want) {
			t.Errorf("primary %s = %v", id, got)
		}
		if got, _ := mirror.DerivedVector(ctx, core.DerivedPlayRatio, id); !reflect.DeepEqual(got, want) {
			t.Errorf("mirror %s = %v", id, got)
		}
	}

	bad := &failingWriter{}
	tee = &TeeWriter{Primary: primary, Mirrors: []core.VectorWriter{bad}}
	err := tee.UpsertDerivedVectors(ctx, core.DerivedCentroid, map[string][]float64{"u3": {1}})
	if !core.IsUnavailable(err) {
		t.Fatalf("镜像失败应返回错误，实际 %v", err)
	}
	if got, _ := primary.DerivedVector(ctx, core.DerivedCentroid, "u3"); !reflect.DeepEqual(got, []float64{1}) {
		t.Errorf("主存储已提交的数据应保留，实际 %v", got)
	}
	if bad.calls != 1 {
		t.Errorf("镜像应被调用 1 次，实际 %d", bad.calls)
	}
}
