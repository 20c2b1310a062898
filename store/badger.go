package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/rushteam/playrec/core"
)

// BadgerStore 是 Badger 实现的嵌入式 core.Store，派生向量可以离线落地在本地目录。
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore 打开 path 下的 Badger 数据库；path 为空时使用内存模式。
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, core.NewUnavailable(core.ModuleStore, "store: badger open", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, core.NewUnavailable(core.ModuleStore, "store: badger get", err)
	}
	return out, nil
}

func (b *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return b.BatchSet(ctx, map[string][]byte{key: value}, ttl...)
}

func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return core.NewUnavailable(core.ModuleStore, "store: badger delete", err)
	}
	return nil
}

func (b *BadgerStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get([]byte(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, core.NewUnavailable(core.ModuleStore, "store: badger batch get", err)
	}
	return result, nil
}

// BatchSet 在单个事务内写入，整批一起提交。
func (b *BadgerStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	exp := expiration(ttl...)
	err := b.db.Update(func(txn *badger.Txn) error {
		for k, v := range kvs {
			e := badger.NewEntry([]byte(k), v)
			if exp > 0 {
				e = e.WithTTL(exp)
			}
			if err := txn.SetEntry(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.NewUnavailable(core.ModuleStore, "store: badger update", err)
	}
	return nil
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

var _ core.Store = (*BadgerStore)(nil)
