package store

import (
	"context"
	"errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/playrec/core"
)

// flakyStore 在 down 为 true 时所有查询都返回底层错误。
type flakyStore struct {
	*MemoryStore
	down  bool
	calls int

	// fail 非空时 UserIDs 返回它
	fail error
}

func (f *flakyStore) UserIDs(ctx context.Context) ([]string, error) {
	f.calls++
	if f.down {
		return nil, errors.New("connection refused")
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return f.MemoryStore.UserIDs(ctx)
}

func (f *flakyStore) NeighborUserIDs(ctx context.Context, userID string, k int) ([]string, error) {
	f.calls++
	return f.MemoryStore.NeighborUserIDs(ctx, userID, k)
}

func TestBreaker_OpensOnInfraErrors(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: fixture(), down: true}
	b := NewBreaker(inner, BreakerConfig{Name: "test_open", FailureThreshold: 2, Timeout: time.Hour})

	for i := 0; i < 2; i++ {
		if _, err := b.UserIDs(ctx); err == nil {
			t.Fatal("期望底层错误")
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("连续失败后应熔断，实际 %v", b.State())
	}

	calls := inner.calls
	_, err := b.UserIDs(ctx)
	if !core.IsUnavailable(err) {
		t.Errorf("熔断时应返回 UNAVAILABLE，实际 %v", err)
	}
	if inner.calls != calls {
		t.Error("熔断时不应调用底层存储")
	}
}

func TestBreaker_DomainErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemoryStore: fixture()}
	b := NewBreaker(inner, BreakerConfig{Name: "test_domain", FailureThreshold: 1, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := b.NeighborUserIDs(ctx, "alice", 3); !core.IsInsufficientData(err) {
			t.Fatalf("期望 INSUFFICIENT_DATA 原样返回，实际 %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("业务错误不应触发熔断，实际 %v", b.State())
	}

	users, err := b.UserIDs(ctx)
	if err != nil || len(users) != 3 {
		t.Errorf("UserIDs = %v, %v", users, err)
	}
	if b.Name() != "memory" {
		t.Errorf("Name 应透传底层存储，实际 %s", b.Name())
	}
}

func TestBreaker_InternalErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	internal := core.WrapDomainError(core.ModuleStore, core.ErrorCodeInternalError, "store: duckdb user ids", errors.New("Binder Error"))
	inner := &flakyStore{MemoryStore: fixture(), fail: internal}
	b := NewBreaker(inner, BreakerConfig{Name: "test_internal", FailureThreshold: 1, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := b.UserIDs(ctx); core.CodeOf(err) != core.ErrorCodeInternalError {
			t.Fatalf("期望 INTERNAL_ERROR 原样返回，实际 %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("存储可达时的内部错误不应触发熔断，实际 %v", b.State())
	}
	if inner.calls != 3 {
		t.Errorf("每次调用都应到达底层存储，实际 %d", inner.calls)
	}
}
