package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/score"
	"github.com/rushteam/playrec/vector"
)

// MemoryStore 是内存实现的 core.PlayStore，用于测试/开发/小数据集。
// 同时实现派生向量读写，NeighborUserIDs 基于其中的游玩比例向量。
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]struct{}
	games   map[string]Game
	plays   map[string]map[string]core.PlayRecord // user -> item -> record
	derived map[core.DerivedKind]map[string][]float64
}

// Game 是一条物品记录；RawVector 保持存储中的原始形态。
type Game struct {
	ItemID    string
	Name      string
	RawVector any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]struct{}),
		games:   make(map[string]Game),
		plays:   make(map[string]map[string]core.PlayRecord),
		derived: make(map[core.DerivedKind]map[string][]float64),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

// AddUser 注册一个用户（可以没有任何物品）。
func (m *MemoryStore) AddUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = struct{}{}
}

// AddGame 写入或覆盖一个物品。
func (m *MemoryStore) AddGame(g Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ItemID] = g
}

// AddPlay 写入一条游玩记录，并隐式注册用户；负的游玩时长返回 INVALID_INPUT。
func (m *MemoryStore) AddPlay(rec core.PlayRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[rec.UserID] = struct{}{}
	if m.plays[rec.UserID] == nil {
		m.plays[rec.UserID] = make(map[string]core.PlayRecord)
	}
	if rec.Name == "" {
		rec.Name = m.games[rec.ItemID].Name
	}
	m.plays[rec.UserID][rec.ItemID] = rec
	return nil
}

func (m *MemoryStore) HasUser(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[userID]
	return ok, nil
}

func (m *MemoryStore) UserIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.users))
	for id := range m.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) TopItemsByPlaytime(ctx context.Context, userID string, k int, order core.Order) ([]core.Row, error) {
	rows, err := m.UserItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	core.SortRows(rows, order)
	if k >= 0 && len(rows) > k {
		rows = rows[:k]
	}
	return rows, nil
}

func (m *MemoryStore) UserItems(ctx context.Context, userID string) ([]core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners := m.ownerCounts()
	recs := m.plays[userID]
	rows := make([]core.Row, 0, len(recs))
	for itemID, rec := range recs {
		g := m.games[itemID]
		name := g.Name
		if name == "" {
			name = rec.Name
		}
		rows = append(rows, core.Row{
			ItemID:          itemID,
			Name:            name,
			RawVector:       g.RawVector,
			PlaytimeForever: rec.PlaytimeForever,
			Playtime2Weeks:  rec.Playtime2Weeks,
			UserCount:       owners[itemID],
		})
	}
	sortByID(rows)
	return rows, nil
}

func (m *MemoryStore) PlayRecords(ctx context.Context, userID string) ([]core.PlayRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.PlayRecord, 0, len(m.plays[userID]))
	for _, rec := range m.plays[userID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (m *MemoryStore) ItemsByIDs(ctx context.Context, ids []string) ([]core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return m.aggregate(nil, want), nil
}

func (m *MemoryStore) AllItemVectors(ctx context.Context) ([]core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.aggregate(nil, nil), nil
}

func (m *MemoryStore) CohortItems(ctx context.Context, userIDs []string) ([]core.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cohort := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		cohort[id] = struct{}{}
	}
	return m.aggregate(cohort, nil), nil
}

// aggregate 汇总物品的总时长与去重用户数。
// cohort 非空时只统计这些用户，并且只返回他们拥有的物品；items 非空时只返回这些物品。
func (m *MemoryStore) aggregate(cohort, items map[string]struct{}) []core.Row {
	acc := make(map[string]*core.Row)
	if cohort == nil {
		for id, g := range m.games {
			if items != nil {
				if _, ok := items[id]; !ok {
					continue
				}
			}
			acc[id] = &core.Row{ItemID: id, Name: g.Name, RawVector: g.RawVector}
		}
	}
	for userID, recs := range m.plays {
		if cohort != nil {
			if _, ok := cohort[userID]; !ok {
				continue
			}
		}
		for itemID, rec := range recs {
			r, ok := acc[itemID]
			if !ok {
				g, known := m.games[itemID]
				if !known || (items != nil && !inSet(items, itemID)) {
					continue
				}
				r = &core.Row{ItemID: itemID, Name: g.Name, RawVector: g.RawVector}
				acc[itemID] = r
			}
			r.PlaytimeForever += rec.PlaytimeForever
			r.Playtime2Weeks += rec.Playtime2Weeks
			r.UserCount++
		}
	}
	rows := make([]core.Row, 0, len(acc))
	for _, r := range acc {
		rows = append(rows, *r)
	}
	sortByID(rows)
	return rows
}

func (m *MemoryStore) ownerCounts() map[string]int64 {
	out := make(map[string]int64)
	for _, recs := range m.plays {
		for itemID := range recs {
			out[itemID]++
		}
	}
	return out
}

func (m *MemoryStore) NeighborUserIDs(ctx context.Context, userID string, k int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ratios := m.derived[core.DerivedPlayRatio]
	target, ok := ratios[userID]
	if !ok {
		return nil, core.NewInsufficientData(core.ModuleStore, "store: no play-ratio vector for user %s", userID)
	}
	type cand struct {
		id  string
		sim float64
	}
	cands := make([]cand, 0, len(ratios))
	for id, vec := range ratios {
		if id == userID {
			continue
		}
		sim, err := score.Score(target, vec, score.Cosine)
		if err != nil {
			continue
		}
		cands = append(cands, cand{id: id, sim: sim})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].sim != cands[j].sim {
			return cands[i].sim > cands[j].sim
		}
		return cands[i].id < cands[j].id
	})
	if k >= 0 && len(cands) > k {
		cands = cands[:k]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out, nil
}

func (m *MemoryStore) ItemOrder(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, recs := range m.plays {
		for itemID := range recs {
			seen[itemID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) UpsertDerivedVector(ctx context.Context, kind core.DerivedKind, entityID string, vec []float64) error {
	return m.UpsertDerivedVectors(ctx, kind, map[string][]float64{entityID: vec})
}

func (m *MemoryStore) UpsertDerivedVectors(ctx context.Context, kind core.DerivedKind, vecs map[string][]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.derived[kind] == nil {
		m.derived[kind] = make(map[string][]float64)
	}
	for id, vec := range vecs {
		m.derived[kind][id] = append([]float64(nil), vec...)
	}
	return nil
}

func (m *MemoryStore) DerivedVector(ctx context.Context, kind core.DerivedKind, entityID string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vec, ok := m.derived[kind][entityID]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return append([]float64(nil), vec...), nil
}

// RatioUserIDs 返回已有游玩比例向量的用户（升序）。
func (m *MemoryStore) RatioUserIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.derived[core.DerivedPlayRatio]))
	for id := range m.derived[core.DerivedPlayRatio] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// VectorLiteral 是测试数据的便捷写法：把向量编码为 {a,b,c} 字面量。
func VectorLiteral(vec ...float64) string {
	return vector.Format(vec, vector.StyleBrace)
}

func (m *MemoryStore) Close() error { return nil }

func sortByID(rows []core.Row) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemID < rows[j].ItemID })
}

func inSet(set map[string]struct{}, k string) bool {
	_, ok := set[k]
	return ok
}

var (
	_ core.PlayStore         = (*MemoryStore)(nil)
	_ core.BatchVectorWriter = (*MemoryStore)(nil)
	_ core.VectorReader      = (*MemoryStore)(nil)
)
