package store

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
)

// BreakerConfig 熔断参数。
type BreakerConfig struct {
	Name             string        `koanf:"name" yaml:"name"`
	FailureThreshold uint32        `koanf:"failure_threshold" yaml:"failure_threshold"`
	MaxRequests      uint32        `koanf:"max_requests" yaml:"max_requests"`
	Interval         time.Duration `koanf:"interval" yaml:"interval"`
	Timeout          time.Duration `koanf:"timeout" yaml:"timeout"`
}

// DefaultBreakerConfig 返回默认熔断参数。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "play_store",
		FailureThreshold: 5,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
	}
}

// Breaker 用熔断器包装任意 core.PlayStore。
// 只有 UNAVAILABLE 与非 DomainError 计入失败；INTERNAL_ERROR（SQL、类型错误）、
// NOT_FOUND、INSUFFICIENT_DATA 等存储可达时的错误照常返回，不触发熔断。
// 熔断打开时所有调用直接返回 UNAVAILABLE。
type Breaker struct {
	inner core.PlayStore
	name  string
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreaker 创建熔断包装。
func NewBreaker(inner core.PlayStore, cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	b := &Breaker{inner: inner, name: cfg.Name}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isInfraError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store breaker state changed")
			metrics.SetBreakerState(name, stateValue(to))
		},
	}
	b.cb = gobreaker.NewCircuitBreaker[any](settings)
	metrics.SetBreakerState(cfg.Name, stateValue(gobreaker.StateClosed))
	return b
}

// State 返回当前熔断状态。
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func isInfraError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	domainErr := core.GetDomainError(err)
	if domainErr == nil {
		return true
	}
	return domainErr.Code == core.ErrorCodeUnavailable
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

func call[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, core.NewUnavailable(core.ModuleStore, "store: "+b.name+" "+op, err)
		}
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	return out.(T), nil
}

func (b *Breaker) Name() string { return b.inner.Name() }

func (b *Breaker) HasUser(ctx context.Context, userID string) (bool, error) {
	return call(b, "has user", func() (bool, error) { return b.inner.HasUser(ctx, userID) })
}

func (b *Breaker) UserIDs(ctx context.Context) ([]string, error) {
	return call(b, "user ids", func() ([]string, error) { return b.inner.UserIDs(ctx) })
}

func (b *Breaker) TopItemsByPlaytime(ctx context.Context, userID string, k int, order core.Order) ([]core.Row, error) {
	return call(b, "top items", func() ([]core.Row, error) { return b.inner.TopItemsByPlaytime(ctx, userID, k, order) })
}

func (b *Breaker) UserItems(ctx context.Context, userID string) ([]core.Row, error) {
	return call(b, "user items", func() ([]core.Row, error) { return b.inner.UserItems(ctx, userID) })
}

func (b *Breaker) PlayRecords(ctx context.Context, userID string) ([]core.PlayRecord, error) {
	return call(b, "play records", func() ([]core.PlayRecord, error) { return b.inner.PlayRecords(ctx, userID) })
}

func (b *Breaker) ItemsByIDs(ctx context.Context, ids []string) ([]core.Row, error) {
	return call(b, "items by ids", func() ([]core.Row, error) { return b.inner.ItemsByIDs(ctx, ids) })
}

func (b *Breaker) AllItemVectors(ctx context.Context) ([]core.Row, error) {
	return call(b, "all items", func() ([]core.Row, error) { return b.inner.AllItemVectors(ctx) })
}

func (b *Breaker) CohortItems(ctx context.Context, userIDs []string) ([]core.Row, error) {
	return call(b, "cohort items", func() ([]core.Row, error) { return b.inner.CohortItems(ctx, userIDs) })
}

func (b *Breaker) NeighborUserIDs(ctx context.Context, userID string, k int) ([]string, error) {
	return call(b, "neighbors", func() ([]string, error) { return b.inner.NeighborUserIDs(ctx, userID, k) })
}

func (b *Breaker) ItemOrder(ctx context.Context) ([]string, error) {
	return call(b, "item order", func() ([]string, error) { return b.inner.ItemOrder(ctx) })
}

func (b *Breaker) Close() error { return b.inner.Close() }

var _ core.PlayStore = (*Breaker)(nil)
