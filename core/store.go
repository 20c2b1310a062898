package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Row 是存储返回的一行物品数据；向量保持原始形态，由 vector.Normalize 解析。
type Row struct {
	ItemID          string
	Name            string
	RawVector       any
	PlaytimeForever int64
	Playtime2Weeks  int64
	UserCount       int64
}

// PlaytimeTotal 返回 forever + 2weeks。
func (r Row) PlaytimeTotal() int64 {
	return r.PlaytimeForever + r.Playtime2Weeks
}

// PlayRecord 是一条用户游玩记录（分钟，非负；缺失的近期时长记为 0）。
type PlayRecord struct {
	UserID          string
	ItemID          string
	Name            string
	PlaytimeForever int64
	Playtime2Weeks  int64
}

// Validate 要求用户与物品 ID 非空、游玩时长非负。
func (r PlayRecord) Validate() error {
	switch {
	case r.UserID == "" || r.ItemID == "":
		return NewDomainError(ModuleStore, ErrorCodeInvalidInput, "store: play record needs user and item id")
	case r.PlaytimeForever < 0 || r.Playtime2Weeks < 0:
		return NewDomainError(ModuleStore, ErrorCodeInvalidInput, fmt.Sprintf(
			"store: negative playtime for %s/%s: forever=%d 2weeks=%d",
			r.UserID, r.ItemID, r.PlaytimeForever, r.Playtime2Weeks))
	}
	return nil
}

// Order 是 TopK 的排序方式。所有排序最终都按 ItemID 升序打破平局。
type Order int

const (
	// OrderPlaytime 按 playtime_forever 降序，再按 playtime_2weeks 降序
	OrderPlaytime Order = iota
	// OrderCombined 按 playtime_forever + playtime_2weeks 降序
	OrderCombined
	// OrderPopularity 按拥有该物品的去重用户数降序
	OrderPopularity
)

func (o Order) String() string {
	switch o {
	case OrderCombined:
		return "combined"
	case OrderPopularity:
		return "popularity"
	default:
		return "playtime"
	}
}

// ParseOrder 解析排序方式名称。
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "playtime":
		return OrderPlaytime, nil
	case "combined":
		return OrderCombined, nil
	case "popularity":
		return OrderPopularity, nil
	}
	return OrderPlaytime, NewDomainError(ModuleStore, ErrorCodeInvalidInput, fmt.Sprintf("store: unknown order %q", s))
}

// Less 报告 a 是否应排在 b 之前。
func (o Order) Less(a, b Row) bool {
	switch o {
	case OrderCombined:
		if ta, tb := a.PlaytimeTotal(), b.PlaytimeTotal(); ta != tb {
			return ta > tb
		}
	case OrderPopularity:
		if a.UserCount != b.UserCount {
			return a.UserCount > b.UserCount
		}
	default:
		if a.PlaytimeForever != b.PlaytimeForever {
			return a.PlaytimeForever > b.PlaytimeForever
		}
		if a.Playtime2Weeks != b.Playtime2Weeks {
			return a.Playtime2Weeks > b.Playtime2Weeks
		}
	}
	return a.ItemID < b.ItemID
}

// SortRows 按 order 原地排序。
func SortRows(rows []Row, o Order) {
	sort.SliceStable(rows, func(i, j int) bool {
		return o.Less(rows[i], rows[j])
	})
}

// PlayStore 是游玩数据存储的领域接口（能力接口，显式注入，不使用全局句柄）。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 向量以原始形态返回，解析由调用方完成
//   - 查询结果对调用方只读
//
// 实现：
//   - store.MemoryStore（测试 / 小数据集）
//   - store.DuckDB（关系型存储）
//   - store.Breaker（熔断包装任意实现）
type PlayStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// HasUser 判断用户是否存在（与“用户没有任何物品”区分）
	HasUser(ctx context.Context, userID string) (bool, error)

	// UserIDs 返回全部用户 ID（升序）
	UserIDs(ctx context.Context) ([]string, error)

	// TopItemsByPlaytime 返回用户按 order 排序的前 k 个物品
	TopItemsByPlaytime(ctx context.Context, userID string, k int, order Order) ([]Row, error)

	// UserItems 返回用户玩过的全部物品（游玩时长为该用户的）
	UserItems(ctx context.Context, userID string) ([]Row, error)

	// PlayRecords 返回用户的原始游玩记录
	PlayRecords(ctx context.Context, userID string) ([]PlayRecord, error)

	// ItemsByIDs 按 ID 批量读取物品（未知 ID 忽略）
	ItemsByIDs(ctx context.Context, ids []string) ([]Row, error)

	// AllItemVectors 返回全部物品及其全局聚合（总时长、用户数）
	AllItemVectors(ctx context.Context) ([]Row, error)

	// CohortItems 返回一组用户拥有的物品并集，聚合只统计这组用户
	CohortItems(ctx context.Context, userIDs []string) ([]Row, error)

	// NeighborUserIDs 按游玩比例向量余弦相似度返回最相近的 k 个用户（不含自身）
	NeighborUserIDs(ctx context.Context, userID string, k int) ([]string, error)

	// ItemOrder 返回游玩比例向量的分量顺序：全部出现过的物品 ID 升序
	ItemOrder(ctx context.Context) ([]string, error)

	// Close 关闭连接/释放资源
	Close() error
}

// DerivedKind 是派生向量的种类。
type DerivedKind string

const (
	// DerivedPlayRatio 用户游玩比例向量
	DerivedPlayRatio DerivedKind = "play_ratio"
	// DerivedCentroid 用户种子集合质心
	DerivedCentroid DerivedKind = "centroid"
)

// VectorWriter 写入派生向量（upsert 语义）。
type VectorWriter interface {
	UpsertDerivedVector(ctx context.Context, kind DerivedKind, entityID string, vec []float64) error
}

// BatchVectorWriter 在一次提交内写入一批派生向量；失败时整批不生效。
type BatchVectorWriter interface {
	VectorWriter
	UpsertDerivedVectors(ctx context.Context, kind DerivedKind, vecs map[string][]float64) error
}

// VectorReader 读取派生向量；不存在时返回 NOT_FOUND。
type VectorReader interface {
	DerivedVector(ctx context.Context, kind DerivedKind, entityID string) ([]float64, error)
}

// Store 是 KV 存储的领域接口，派生向量的 Redis / Badger 落地基于它实现。
//
// 实现：
//   - store.RedisStore
//   - store.BadgerStore
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取（减少网络往返）
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}
