package recommend

import (
	"context"
	"sort"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/recall"
	"github.com/rushteam/playrec/score"
	"github.com/rushteam/playrec/vector"
)

// Consistency 是单个用户的“时长排名 vs 内容相似度排名”一致性。
type Consistency struct {
	UserID string `json:"user_id"`
	// Rho 是两组排名的 Spearman 相关系数
	Rho float64 `json:"rho"`
	// Common 是同时具备时长与向量的物品数
	Common int `json:"common"`
}

// Consistency 计算用户自身物品上的一致性：
//   - 时长排名：用户全部物品按 playtime 降序的名次
//   - 相似度排名：参考维度的物品按与质心的余弦相似度降序的名次
//
// 两者共有的物品少于 Options.MinCommon 时返回 INSUFFICIENT_DATA。
func (s *Service) Consistency(ctx context.Context, userID string) (Consistency, error) {
	out := Consistency{UserID: userID}
	if s.Store == nil {
		return out, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: store is required")
	}
	ok, err := s.Store.HasUser(ctx, userID)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, core.NewNotFound(core.ModuleRecommend, "recommend: unknown user %s", userID)
	}
	rows, err := s.Store.UserItems(ctx, userID)
	if err != nil {
		return out, err
	}
	core.SortRows(rows, core.OrderPlaytime)

	playRank := make(map[string]float64, len(rows))
	items := make([]*core.Item, 0, len(rows))
	vecs := make([][]float64, 0, len(rows))
	for i, row := range rows {
		playRank[row.ItemID] = float64(i + 1)
		it, ok := recall.RowToItem(ctx, row)
		if !ok || len(it.Vector) == 0 {
			continue
		}
		items = append(items, it)
		vecs = append(vecs, it.Vector)
	}

	dim, _ := vector.ModeDimension(vecs)
	same := items[:0]
	for _, it := range items {
		if len(it.Vector) == dim {
			same = append(same, it)
		}
	}
	minCommon := s.Options.MinCommon
	if minCommon < 2 {
		minCommon = (&core.DefaultRecommendConfig{}).DefaultMinCommonItems()
	}
	if len(same) < minCommon {
		return out, core.NewInsufficientData(core.ModuleRecommend,
			"recommend: user %s has %d items with vectors, need %d", userID, len(same), minCommon)
	}

	sameVecs := make([][]float64, len(same))
	for i, it := range same {
		sameVecs[i] = it.Vector
	}
	centroid, err := vector.Centroid(sameVecs)
	if err != nil {
		return out, err
	}
	for _, it := range same {
		// 维度一致，不会出错
		it.Score, _ = score.CosineSimilarity(centroid, it.Vector)
	}
	sort.SliceStable(same, func(i, j int) bool {
		if same[i].Score != same[j].Score {
			return same[i].Score > same[j].Score
		}
		return same[i].ID < same[j].ID
	})

	pr := make([]float64, len(same))
	sr := make([]float64, len(same))
	for i, it := range same {
		pr[i] = playRank[it.ID]
		sr[i] = float64(i + 1)
	}
	rho, err := score.Score(pr, sr, score.Spearman)
	if err != nil {
		return out, err
	}
	out.Rho = rho
	out.Common = len(same)
	return out, nil
}

// MeanRho 返回一组一致性结果的平均值；为空时 ok 为 false。
func MeanRho(results []Consistency) (mean float64, ok bool) {
	if len(results) == 0 {
		return 0, false
	}
	for _, r := range results {
		mean += r.Rho
	}
	return mean / float64(len(results)), true
}
