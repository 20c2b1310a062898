package batch

import (
	"context"
	"math"
	"time"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/logging"
)

// RatioLister 列出已写入游玩比例向量的用户。
type RatioLister interface {
	RatioUserIDs(ctx context.Context) ([]string, error)
}

// RatioJob 重算全部用户的游玩比例向量。
//
// 分量顺序为 ItemOrder（全部出现过的物品 ID 升序），分量值为
// playtime_forever / 用户总时长（总时长为 0 时按 1 计），保留 6 位小数。
// 用户按 ID 升序处理，每 ChunkSize 个用户一次提交；中途失败时已提交的块保留。
type RatioJob struct {
	Store  core.PlayStore
	Writer core.BatchVectorWriter

	// ChunkSize 每次提交的用户数，<=0 时为 100
	ChunkSize int

	// Resume 为 true 时跳过 Committed 中已有向量的用户
	Resume    bool
	Committed RatioLister
}

// RatioReport 是一次重算的汇总。
type RatioReport struct {
	BatchID   string        `json:"batch_id"`
	Users     int           `json:"users"`
	Written   int           `json:"written"`
	Resumed   int           `json:"resumed"`
	Chunks    int           `json:"chunks"`
	Dimension int           `json:"dimension"`
	Duration  time.Duration `json:"duration"`
}

// Run 执行重算。
func (j *RatioJob) Run(ctx context.Context) (*RatioReport, error) {
	if j.Store == nil || j.Writer == nil {
		return nil, core.NewDomainError(core.ModuleBatch, core.ErrorCodeInvalidInput, "batch: ratio job needs a store and a writer")
	}
	start := time.Now()
	batchID := logging.BatchIDFromContext(ctx)
	if batchID == "" {
		batchID = logging.GenerateID()
		ctx = logging.ContextWithBatchID(ctx, batchID)
	}
	log := logging.Ctx(ctx)

	order, err := j.Store.ItemOrder(ctx)
	if err != nil {
		return nil, err
	}
	users, err := j.Store.UserIDs(ctx)
	if err != nil {
		return nil, err
	}
	report := &RatioReport{BatchID: batchID, Users: len(users), Dimension: len(order)}

	if j.Resume && j.Committed != nil {
		done, err := j.Committed.RatioUserIDs(ctx)
		if err != nil {
			return nil, err
		}
		skip := make(map[string]struct{}, len(done))
		for _, id := range done {
			skip[id] = struct{}{}
		}
		pending := users[:0:0]
		for _, id := range users {
			if _, ok := skip[id]; !ok {
				pending = append(pending, id)
			}
		}
		report.Resumed = len(users) - len(pending)
		users = pending
	}

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	size := j.ChunkSize
	if size <= 0 {
		size = 100
	}

	for lo := 0; lo < len(users); lo += size {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		hi := min(lo+size, len(users))
		chunk := make(map[string][]float64, hi-lo)
		for _, userID := range users[lo:hi] {
			records, err := j.Store.PlayRecords(ctx, userID)
			if err != nil {
				return report, err
			}
			chunk[userID] = PlayRatio(index, records)
		}
		if err := j.Writer.UpsertDerivedVectors(ctx, core.DerivedPlayRatio, chunk); err != nil {
			log.Error().Err(err).Int("chunk", report.Chunks).Str("first_user", users[lo]).Msg("ratio chunk failed")
			return report, err
		}
		report.Written += len(chunk)
		report.Chunks++
		log.Debug().Int("chunk", report.Chunks).Int("written", report.Written).Msg("ratio chunk committed")
	}

	report.Duration = time.Since(start)
	log.Info().
		Int("users", report.Users).
		Int("written", report.Written).
		Int("resumed", report.Resumed).
		Int("dimension", report.Dimension).
		Dur("took", report.Duration).
		Msg("play ratios recomputed")
	return report, nil
}

// PlayRatio 计算单个用户的游玩比例向量；index 是物品 ID 到分量下标的映射。
// 不在 index 中的物品忽略；负的游玩时长按 0 计，分量总在 [0, 1] 内。
func PlayRatio(index map[string]int, records []core.PlayRecord) []float64 {
	vec := make([]float64, len(index))
	var total int64
	for _, r := range records {
		total += max(r.PlaytimeForever, 0)
	}
	if total == 0 {
		total = 1
	}
	for _, r := range records {
		i, ok := index[r.ItemID]
		if !ok {
			continue
		}
		vec[i] = round6(float64(max(r.PlaytimeForever, 0)) / float64(total))
	}
	return vec
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}
