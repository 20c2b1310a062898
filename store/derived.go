package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/playrec/core"
)

// DerivedVectors 把派生向量（游玩比例、质心）存到任意 core.Store（Redis / Badger / 内存）。
// key 形如 {prefix}:{kind}:{entityID}，value 为 JSON。
type DerivedVectors struct {
	kv     core.Store
	prefix string
	ttl    int
}

type derivedValue struct {
	Vector    []float64 `json:"v"`
	Dim       int       `json:"dim"`
	UpdatedAt int64     `json:"updated_at"`
}

// NewDerivedVectors 创建派生向量存储；ttl 为秒，0 表示不过期。
func NewDerivedVectors(kv core.Store, prefix string, ttl int) *DerivedVectors {
	if prefix == "" {
		prefix = "playrec"
	}
	return &DerivedVectors{kv: kv, prefix: prefix, ttl: ttl}
}

// Name 返回底层存储名称。
func (d *DerivedVectors) Name() string {
	return "derived." + d.kv.Name()
}

func (d *DerivedVectors) key(kind core.DerivedKind, entityID string) string {
	return fmt.Sprintf("%s:%s:%s", d.prefix, kind, entityID)
}

func encodeDerived(vec []float64) ([]byte, error) {
	return json.Marshal(derivedValue{Vector: vec, Dim: len(vec), UpdatedAt: time.Now().Unix()})
}

func (d *DerivedVectors) UpsertDerivedVector(ctx context.Context, kind core.DerivedKind, entityID string, vec []float64) error {
	data, err := encodeDerived(vec)
	if err != nil {
		return fmt.Errorf("encode derived vector: %w", err)
	}
	return d.kv.Set(ctx, d.key(kind, entityID), data, d.ttl)
}

func (d *DerivedVectors) UpsertDerivedVectors(ctx context.Context, kind core.DerivedKind, vecs map[string][]float64) error {
	kvs := make(map[string][]byte, len(vecs))
	for id, vec := range vecs {
		data, err := encodeDerived(vec)
		if err != nil {
			return fmt.Errorf("encode derived vector %s: %w", id, err)
		}
		kvs[d.key(kind, id)] = data
	}
	return d.kv.BatchSet(ctx, kvs, d.ttl)
}

func (d *DerivedVectors) DerivedVector(ctx context.Context, kind core.DerivedKind, entityID string) ([]float64, error) {
	data, err := d.kv.Get(ctx, d.key(kind, entityID))
	if err != nil {
		return nil, err
	}
	var v derivedValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeParse, "store: decode derived vector", err)
	}
	return v.Vector, nil
}

// Close 关闭底层存储。
func (d *DerivedVectors) Close() error {
	return d.kv.Close()
}

// TeeWriter 先写主存储（分块事务），成功后再同步写入镜像存储。
// 镜像失败会返回错误，但主存储中已提交的数据保留。
type TeeWriter struct {
	Primary core.BatchVectorWriter
	Mirrors []core.VectorWriter
}

func (t *TeeWriter) UpsertDerivedVector(ctx context.Context, kind core.DerivedKind, entityID string, vec []float64) error {
	if err := t.Primary.UpsertDerivedVector(ctx, kind, entityID, vec); err != nil {
		return err
	}
	for _, m := range t.Mirrors {
		if err := m.UpsertDerivedVector(ctx, kind, entityID, vec); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
	}
	return nil
}

func (t *TeeWriter) UpsertDerivedVectors(ctx context.Context, kind core.DerivedKind, vecs map[string][]float64) error {
	if err := t.Primary.UpsertDerivedVectors(ctx, kind, vecs); err != nil {
		return err
	}
	for _, m := range t.Mirrors {
		if bw, ok := m.(core.BatchVectorWriter); ok {
			if err := bw.UpsertDerivedVectors(ctx, kind, vecs); err != nil {
				return fmt.Errorf("mirror: %w", err)
			}
			continue
		}
		ids := make([]string, 0, len(vecs))
		for id := range vecs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := m.UpsertDerivedVector(ctx, kind, id, vecs[id]); err != nil {
				return fmt.Errorf("mirror: %w", err)
			}
		}
	}
	return nil
}

var (
	_ core.BatchVectorWriter = (*DerivedVectors)(nil)
	_ core.VectorReader      = (*DerivedVectors)(nil)
	_ core.BatchVectorWriter = (*TeeWriter)(nil)
)
