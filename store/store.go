// Package store 提供 core.PlayStore 与 core.Store 的实现，接口定义在 core 包。
//
//	var plays core.PlayStore = store.NewMemoryStore()
//	var kv core.Store = store.NewMemoryKV()
package store

import "github.com/rushteam/playrec/core"

// ErrNotFound 是 key 不存在时的错误。
var ErrNotFound = core.ErrStoreNotFound

