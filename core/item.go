package core

import "github.com/rushteam/playrec/pkg/utils"

// 常用特征 key，由召回阶段写入，排序阶段读取。
const (
	FeaturePlaytimeForever = "playtime_forever"
	FeaturePlaytime2Weeks  = "playtime_2weeks"
	FeaturePlaytimeTotal   = "playtime_total"
	FeatureUserCount       = "user_count"
	FeatureNeighborCount   = "neighbor_count"
)

// Item 是推荐链路中的统一承载结构：向量、特征、分数、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID       string
	Name     string
	Vector   []float64
	Score    float64
	Features map[string]float64
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Score:    0,
		Features: make(map[string]float64),
		Labels:   make(map[string]utils.Label),
	}
}

// Feature 读取特征值，不存在时为 0。
func (it *Item) Feature(key string) float64 {
	if it.Features == nil {
		return 0
	}
	return it.Features[key]
}

// SetFeature 写入特征值。
func (it *Item) SetFeature(key string, v float64) {
	if it.Features == nil {
		it.Features = make(map[string]float64)
	}
	it.Features[key] = v
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Clone 深拷贝，节点之间传递时避免共享可变状态。
func (it *Item) Clone() *Item {
	out := &Item{
		ID:       it.ID,
		Name:     it.Name,
		Score:    it.Score,
		Features: make(map[string]float64, len(it.Features)),
		Labels:   make(map[string]utils.Label, len(it.Labels)),
	}
	if it.Vector != nil {
		out.Vector = append([]float64(nil), it.Vector...)
	}
	for k, v := range it.Features {
		out.Features[k] = v
	}
	for k, v := range it.Labels {
		out.Labels[k] = v
	}
	return out
}

// Recommendation 是对外输出的一条推荐结果。
type Recommendation struct {
	ItemID string  `json:"item_id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
}

// ToRecommendations 将排序后的 Item 转为推荐列表，保持顺序。
func ToRecommendations(items []*Item) []Recommendation {
	out := make([]Recommendation, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, Recommendation{ItemID: it.ID, Name: it.Name, Score: it.Score})
	}
	return out
}
