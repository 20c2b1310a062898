package core

import "time"

// UserProfile 是单次请求内的用户画像。
//
// 它不是某一个 Node，而是：
//   - 由 SeedNode 装载（种子集合、已玩集合）
//   - 被召回 / 过滤 / 排序节点共享读取
//   - 请求结束即丢弃，不跨用户复用
type UserProfile struct {
	UserID string

	// Seeds 是用户按游玩时长排序的 TopN 物品（带向量），即“喜欢”集合
	Seeds []*Item

	// Played 是用户玩过的全部物品 ID；PlayedNames 是对应的展示名
	Played      map[string]struct{}
	PlayedNames map[string]struct{}

	// Neighbors 是按游玩比例相似度选出的近邻用户
	Neighbors []string

	// Dimension 是参考向量维度（种子集合的众数维度）
	Dimension int

	UpdateTime time.Time
}

// NewUserProfile 创建一个新的用户画像。
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:      userID,
		Played:      make(map[string]struct{}),
		PlayedNames: make(map[string]struct{}),
		UpdateTime:  time.Now(),
	}
}

// AddPlayed 记录已玩物品。
func (p *UserProfile) AddPlayed(itemID, name string) {
	if p.Played == nil {
		p.Played = make(map[string]struct{})
	}
	if p.PlayedNames == nil {
		p.PlayedNames = make(map[string]struct{})
	}
	if itemID != "" {
		p.Played[itemID] = struct{}{}
	}
	if name != "" {
		p.PlayedNames[name] = struct{}{}
	}
}

// HasPlayed 按 ID 判断。
func (p *UserProfile) HasPlayed(itemID string) bool {
	_, ok := p.Played[itemID]
	return ok
}

// HasPlayedName 按展示名判断。
func (p *UserProfile) HasPlayedName(name string) bool {
	_, ok := p.PlayedNames[name]
	return ok
}

// SeedVectors 返回种子物品向量（保持种子顺序，跳过空向量）。
func (p *UserProfile) SeedVectors() [][]float64 {
	out := make([][]float64, 0, len(p.Seeds))
	for _, it := range p.Seeds {
		if len(it.Vector) == 0 {
			continue
		}
		out = append(out, it.Vector)
	}
	return out
}
