// Package recommend 组装召回、排序、截断节点，对单个用户产出推荐列表。
//
// 三种方式：
//
//	content   SeedNode -> [NeighborNode] -> PoolNode -> CentroidNode -> TopNNode
//	neighbor  SeedNode -> NeighborNode -> NeighborVoteNode -> FrequencyNode -> TopNNode
//	maxsim    SeedNode -> [NeighborNode] -> PoolNode -> MaxSimNode -> TopNNode
//
// 每个请求使用独立的 RecommendContext，Service 本身只读，可并发调用。
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/match"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
	"github.com/rushteam/playrec/rank"
	"github.com/rushteam/playrec/recall"
	"github.com/rushteam/playrec/rerank"
	"github.com/rushteam/playrec/score"
)

// Service 是推荐服务。
type Service struct {
	Store core.PlayStore

	// Derived 非空时 content 方式会写出用户质心
	Derived core.VectorWriter

	Options Options
}

// NewService 创建推荐服务。
func NewService(store core.PlayStore, derived core.VectorWriter, opts Options) *Service {
	return &Service{Store: store, Derived: derived, Options: opts}
}

// Request 是一次推荐请求。
type Request struct {
	UserID string
	Mode   Mode
	// K 推荐条数；0 使用 Options.K
	K int
}

// Report 是一次推荐的结果。
type Report struct {
	RequestID       string                `json:"request_id"`
	UserID          string                `json:"user_id"`
	Mode            Mode                  `json:"mode"`
	Seeds           []core.Recommendation `json:"seeds"`
	Recommendations []core.Recommendation `json:"recommendations"`

	// Match 是种子集合与推荐列表的配对结果（度量与策略取自 Options）
	Match *MatchReport `json:"match,omitempty"`
}

// MatchReport 是一次配对的摘要。
type MatchReport struct {
	Metric   string `json:"metric"`
	Strategy string `json:"strategy"`
	// Skipped 是维度不一致被跳过的单元格数
	Skipped int `json:"skipped"`
	match.Result
}

// Pipeline 按方式组装节点链。
func (s *Service) Pipeline(mode Mode) (*pipeline.Pipeline, error) {
	if s.Store == nil {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: store is required")
	}
	o := s.Options
	topk := recall.NewTopKBuilder(s.Store)
	seed := &recall.SeedNode{Builder: topk, K: o.SeedK, Order: core.OrderPlaytime}
	neighbors := &recall.NeighborNode{Store: s.Store, K: o.NeighborK}
	pool := &recall.PoolNode{
		Builder:      recall.NewPoolBuilder(s.Store),
		Mode:         o.Exclusion,
		Scope:        o.Scope,
		UseNeighbors: o.NeighborPool,
	}
	// N 为 0 时读取请求参数 k
	topn := &rerank.TopNNode{}

	switch mode {
	case ModeContent, "":
		nodes := []pipeline.Node{seed}
		if o.NeighborPool {
			nodes = append(nodes, neighbors)
		}
		nodes = append(nodes, pool, &rank.CentroidNode{Metric: o.Metric, Writer: s.Derived}, topn)
		return pipeline.New(string(ModeContent), nodes...), nil

	case ModeNeighbor:
		return pipeline.New(string(ModeNeighbor),
			seed,
			neighbors,
			&recall.NeighborVoteNode{Store: s.Store, Top: o.NeighborTop, Mode: o.Exclusion, Scope: o.Scope},
			&rank.FrequencyNode{},
			topn,
		), nil

	case ModeMaxSim:
		nodes := []pipeline.Node{seed}
		if o.NeighborPool {
			nodes = append(nodes, neighbors)
		}
		nodes = append(nodes, pool, &rank.MaxSimNode{Metric: o.Metric}, topn)
		return pipeline.New(string(ModeMaxSim), nodes...), nil
	}
	return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, fmt.Sprintf("recommend: unknown mode %q", mode))
}

// Recommend 对单个用户产出推荐列表。
//
// 无可推荐结果（EMPTY_POOL / INSUFFICIENT_DATA）以错误返回，调用方用
// core.IsNoRecommendation 与真正的失败区分。
func (s *Service) Recommend(ctx context.Context, req Request) (*Report, error) {
	if req.Mode == "" {
		req.Mode = ModeContent
	}
	if req.K < 0 {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, fmt.Sprintf("recommend: k must be non-negative, got %d", req.K))
	}
	k := req.K
	if k == 0 {
		k = s.Options.K
	}
	if logging.RequestIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewRequestID(ctx)
	}

	start := time.Now()
	report, err := s.recommend(ctx, req, k)
	metrics.RecordRequest(string(req.Mode), outcome(err), time.Since(start))

	log := logging.Ctx(ctx)
	switch {
	case err == nil:
		log.Info().
			Str("user_id", req.UserID).
			Str("mode", string(req.Mode)).
			Int("count", len(report.Recommendations)).
			Dur("took", time.Since(start)).
			Msg("recommend done")
	case core.IsNoRecommendation(err):
		log.Info().Err(err).Str("user_id", req.UserID).Str("mode", string(req.Mode)).Msg("no recommendation")
	default:
		log.Error().Err(err).Str("user_id", req.UserID).Str("mode", string(req.Mode)).Msg("recommend failed")
	}
	return report, err
}

func (s *Service) recommend(ctx context.Context, req Request, k int) (*Report, error) {
	p, err := s.Pipeline(req.Mode)
	if err != nil {
		return nil, err
	}
	rctx := &core.RecommendContext{
		UserID:    req.UserID,
		RequestID: logging.RequestIDFromContext(ctx),
		Mode:      string(req.Mode),
		Params: map[string]any{
			core.ParamK:         k,
			core.ParamNeighborK: s.Options.NeighborK,
			recall.ParamSeedK:   s.Options.SeedK,
		},
	}
	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RequestID:       rctx.RequestID,
		UserID:          req.UserID,
		Mode:            req.Mode,
		Recommendations: core.ToRecommendations(items),
	}
	var seeds []*core.Item
	if rctx.User != nil {
		seeds = rctx.User.Seeds
	}
	report.Seeds = core.ToRecommendations(seeds)
	if len(seeds) > 0 && len(items) > 0 {
		report.Match = s.match(seeds, items)
	}
	return report, nil
}

func (s *Service) match(src, dst []*core.Item) *MatchReport {
	r := CompareItems(src, dst, []score.Metric{s.Options.Metric}, []match.Strategy{s.Options.Strategy})[0]
	return &r
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case core.IsNoRecommendation(err):
		return metrics.OutcomeNoRecommendation
	default:
		return metrics.OutcomeError
	}
}
