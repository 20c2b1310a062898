// Package batch 对大量用户并行执行推荐或一致性计算，并离线重算游玩比例向量。
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
	"github.com/rushteam/playrec/recommend"
)

// Runner 并行处理一批用户。
//
// 每个用户使用独立的请求上下文，用户之间只共享只读的 Service 与存储；
// 单个用户失败不会中断批次，结果按错误代码计入 Report。
type Runner struct {
	Service *recommend.Service

	// Workers 最大并发数，<=0 时为 1
	Workers int

	Mode recommend.Mode
	// K 每个用户的推荐条数；0 使用 Service.Options.K
	K int

	// OnResult 非空时按完成顺序回调每个用户的结果（串行调用）
	OnResult func(Result)
}

// Result 是单个用户的处理结果。
type Result struct {
	UserID      string                 `json:"user_id"`
	Report      *recommend.Report      `json:"report,omitempty"`
	Consistency *recommend.Consistency `json:"consistency,omitempty"`
	Err         error                  `json:"-"`
}

// Report 是一次批处理的汇总。
type Report struct {
	BatchID          string         `json:"batch_id"`
	Total            int            `json:"total"`
	Succeeded        int            `json:"succeeded"`
	NoRecommendation int            `json:"no_recommendation"`
	Failed           map[string]int `json:"failed"`

	// MeanRho 一致性模式下成功用户的平均 Spearman 系数
	MeanRho *float64 `json:"mean_rho,omitempty"`

	Duration time.Duration `json:"duration"`
}

// FailedTotal 返回失败用户数。
func (r *Report) FailedTotal() int {
	n := 0
	for _, c := range r.Failed {
		n += c
	}
	return n
}

type userFunc func(ctx context.Context, userID string) Result

// Run 为每个用户产出推荐列表；userIDs 为空时处理存储中的全部用户。
func (r *Runner) Run(ctx context.Context, userIDs []string) (*Report, error) {
	return r.run(ctx, "recommend", userIDs, func(ctx context.Context, userID string) Result {
		rep, err := r.Service.Recommend(ctx, recommend.Request{UserID: userID, Mode: r.Mode, K: r.K})
		return Result{UserID: userID, Report: rep, Err: err}
	})
}

// RunConsistency 计算每个用户的一致性，并在 Report 中给出平均值。
func (r *Runner) RunConsistency(ctx context.Context, userIDs []string) (*Report, error) {
	var (
		mu  sync.Mutex
		all []recommend.Consistency
	)
	rep, err := r.run(ctx, "consistency", userIDs, func(ctx context.Context, userID string) Result {
		c, err := r.Service.Consistency(ctx, userID)
		if err != nil {
			return Result{UserID: userID, Err: err}
		}
		mu.Lock()
		all = append(all, c)
		mu.Unlock()
		return Result{UserID: userID, Consistency: &c}
	})
	if err != nil {
		return rep, err
	}
	if mean, ok := recommend.MeanRho(all); ok {
		rep.MeanRho = &mean
	}
	return rep, nil
}

func (r *Runner) run(ctx context.Context, kind string, userIDs []string, fn userFunc) (*Report, error) {
	if r.Service == nil || r.Service.Store == nil {
		return nil, core.NewDomainError(core.ModuleBatch, core.ErrorCodeInvalidInput, "batch: runner needs a service with a store")
	}
	start := time.Now()
	batchID := logging.BatchIDFromContext(ctx)
	if batchID == "" {
		batchID = logging.GenerateID()
		ctx = logging.ContextWithBatchID(ctx, batchID)
	}
	log := logging.Ctx(ctx)

	if len(userIDs) == 0 {
		ids, err := r.Service.Store.UserIDs(ctx)
		if err != nil {
			return nil, err
		}
		userIDs = ids
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	log.Info().Str("kind", kind).Int("users", len(userIDs)).Int("workers", workers).Msg("batch started")

	report := &Report{
		BatchID: batchID,
		Total:   len(userIDs),
		Failed:  make(map[string]int),
	}
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, id := range userIDs {
		if egCtx.Err() != nil {
			break
		}
		userID := id
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			res := fn(logging.ContextWithRequestID(egCtx, logging.GenerateID()), userID)

			mu.Lock()
			defer mu.Unlock()
			report.tally(res)
			if r.OnResult != nil {
				r.OnResult(res)
			}
			return nil
		})
	}
	err := eg.Wait()
	report.Duration = time.Since(start)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).
			Str("kind", kind).
			Int("processed", report.Succeeded+report.NoRecommendation+report.FailedTotal()).
			Dur("took", report.Duration).
			Msg("batch interrupted")
		return report, err
	}

	log.Info().
		Str("kind", kind).
		Int("succeeded", report.Succeeded).
		Int("no_recommendation", report.NoRecommendation).
		Int("failed", report.FailedTotal()).
		Dur("took", report.Duration).
		Msg("batch finished")
	return report, nil
}

// tally 需在持有锁时调用。
func (r *Report) tally(res Result) {
	switch {
	case res.Err == nil:
		r.Succeeded++
		metrics.RecordBatchUser(metrics.OutcomeOK)
	case core.IsNoRecommendation(res.Err):
		r.NoRecommendation++
		metrics.RecordBatchUser(metrics.OutcomeNoRecommendation)
	default:
		r.Failed[core.CodeOf(res.Err)]++
		metrics.RecordBatchUser(metrics.OutcomeError)
	}
}

// FailedCodes 返回出现过的失败代码（升序）。
func (r *Report) FailedCodes() []string {
	codes := make([]string, 0, len(r.Failed))
	for c := range r.Failed {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
