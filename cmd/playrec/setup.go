package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/playrec/batch"
	"github.com/rushteam/playrec/config"
	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/store"
)

// backend 是一次命令运行所需的存储句柄。
type backend struct {
	// play 是熔断包装后的游玩数据存储
	play core.PlayStore
	// derived 写出派生向量：主存储 + 可选的 redis / badger 镜像
	derived core.BatchVectorWriter
	// committed 列出已写入游玩比例向量的用户
	committed batch.RatioLister

	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// primaryStore 同时是 PlayStore、派生向量主存储与续跑来源。
type primaryStore interface {
	core.PlayStore
	core.BatchVectorWriter
	batch.RatioLister
}

// openBackend 按配置打开游玩数据存储与派生向量写出目标。
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	var primary primaryStore
	switch cfg.Store.Driver {
	case "memory":
		primary = store.NewMemoryStore()
	default:
		db, err := store.NewDuckDB(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open duckdb %s: %w", cfg.Store.DSN, err)
		}
		primary = db
	}

	b := &backend{
		play:      store.NewBreaker(primary, cfg.Store.Breaker),
		derived:   primary,
		committed: primary,
		closers:   []func() error{primary.Close},
	}

	mirror, err := openMirror(cfg.Derived)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if mirror != nil {
		b.derived = &store.TeeWriter{Primary: primary, Mirrors: []core.VectorWriter{mirror}}
		b.closers = append(b.closers, mirror.Close)
	}

	logging.Ctx(ctx).Debug().
		Str("driver", cfg.Store.Driver).
		Str("sink", cfg.Derived.Sink).
		Msg("backend opened")
	return b, nil
}

// openMirror 打开派生向量镜像；sink 为 duckdb 时没有镜像。
func openMirror(cfg config.DerivedConfig) (*store.DerivedVectors, error) {
	var kv core.Store
	switch cfg.Sink {
	case "redis":
		r, err := store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("open redis %s: %w", cfg.RedisAddr, err)
		}
		kv = r
	case "badger":
		bs, err := store.NewBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open badger %s: %w", cfg.BadgerPath, err)
		}
		kv = bs
	default:
		return nil, nil
	}
	return store.NewDerivedVectors(kv, cfg.Prefix, cfg.TTL), nil
}
