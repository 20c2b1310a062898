package recommend

import (
	"context"
	"fmt"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/match"
	"github.com/rushteam/playrec/recall"
	"github.com/rushteam/playrec/score"
)

// AllMetrics 是全部度量。
var AllMetrics = []score.Metric{score.Cosine, score.Spearman}

// AllStrategies 是全部配对策略。
var AllStrategies = []match.Strategy{match.Positional, match.Greedy, match.GreedyBySource, match.BestOf, match.Optimal}

// CompareRequest 比较用户 TopK 与全局榜单。
type CompareRequest struct {
	UserID string
	// Order 全局榜单的排序方式
	Order core.Order
	// K 两个集合的大小；0 使用 Options.SeedK
	K int

	// 为空时使用全部度量 / 策略
	Metrics    []score.Metric
	Strategies []match.Strategy
}

// CompareReport 是度量 × 策略的比较结果。
type CompareReport struct {
	UserID  string                `json:"user_id"`
	Order   string                `json:"order"`
	UserTop []core.Recommendation `json:"user_top"`
	Global  []core.Recommendation `json:"global_top"`
	Results []MatchReport         `json:"results"`
}

// Compare 取用户按时长排序的前 K 个物品，与排除了这些物品的全局前 K 榜单逐对比较。
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*CompareReport, error) {
	if s.Store == nil {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: store is required")
	}
	if req.K < 0 {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, fmt.Sprintf("recommend: k must be non-negative, got %d", req.K))
	}
	k := req.K
	if k == 0 {
		k = s.Options.SeedK
	}

	topk := recall.NewTopKBuilder(s.Store)
	user, err := topk.TopK(ctx, req.UserID, k, core.OrderPlaytime)
	if err != nil {
		return nil, err
	}
	if len(user) == 0 {
		return nil, core.NewInsufficientData(core.ModuleRecommend, "recommend: user %s has no usable items", req.UserID)
	}
	global, err := topk.Global(ctx, k, req.Order, filter.ExclusionFromItems(s.Options.Exclusion, user))
	if err != nil {
		return nil, err
	}
	if len(global) == 0 {
		return nil, core.NewEmptyPool(core.ModuleRecommend, "recommend: global list is empty after exclusion")
	}

	return &CompareReport{
		UserID:  req.UserID,
		Order:   req.Order.String(),
		UserTop: core.ToRecommendations(user),
		Global:  core.ToRecommendations(global),
		Results: CompareItems(user, global, req.Metrics, req.Strategies),
	}, nil
}

// CompareItems 对 src × dst 按每个度量打分，再按每个策略配对。
func CompareItems(src, dst []*core.Item, metrics []score.Metric, strategies []match.Strategy) []MatchReport {
	if len(metrics) == 0 {
		metrics = AllMetrics
	}
	if len(strategies) == 0 {
		strategies = AllStrategies
	}
	out := make([]MatchReport, 0, len(metrics)*len(strategies))
	for _, metric := range metrics {
		m := score.NewMatrix(src, dst, metric)
		for _, strategy := range strategies {
			out = append(out, MatchReport{
				Metric:   metric.String(),
				Strategy: strategy.String(),
				Skipped:  m.Skipped(),
				Result:   match.Match(m, strategy),
			})
		}
	}
	return out
}
