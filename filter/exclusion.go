package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/playrec/core"
)

// Mode 是排除匹配方式。
type Mode int

const (
	// ByID 按物品 ID 精确排除
	ByID Mode = iota
	// ByName 按展示名排除：同名的所有物品都会被排除，即使 ID 不同。
	// 这是有意保留的宽松匹配，重名物品会被误伤。
	ByName
)

func (m Mode) String() string {
	if m == ByName {
		return "name"
	}
	return "id"
}

// ParseMode 解析排除方式。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return ByID, nil
	case "name":
		return ByName, nil
	}
	return ByID, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, fmt.Sprintf("filter: unknown exclusion mode %q", s))
}

// Exclusion 是一次请求的排除集合。
type Exclusion struct {
	Mode  Mode
	IDs   map[string]struct{}
	Names map[string]struct{}
}

// NewExclusion 创建排除集合。
func NewExclusion(mode Mode) Exclusion {
	return Exclusion{
		Mode:  mode,
		IDs:   make(map[string]struct{}),
		Names: make(map[string]struct{}),
	}
}

// ExclusionFromProfile 以用户已玩集合构造排除集合。
func ExclusionFromProfile(mode Mode, p *core.UserProfile) Exclusion {
	ex := NewExclusion(mode)
	if p == nil {
		return ex
	}
	for id := range p.Played {
		ex.IDs[id] = struct{}{}
	}
	for name := range p.PlayedNames {
		ex.Names[name] = struct{}{}
	}
	return ex
}

// ExclusionFromItems 以一组物品构造排除集合。
func ExclusionFromItems(mode Mode, items []*core.Item) Exclusion {
	ex := NewExclusion(mode)
	for _, it := range items {
		ex.Add(it.ID, it.Name)
	}
	return ex
}

// Add 加入一个物品。
func (e *Exclusion) Add(id, name string) {
	if e.IDs == nil {
		e.IDs = make(map[string]struct{})
	}
	if e.Names == nil {
		e.Names = make(map[string]struct{})
	}
	if id != "" {
		e.IDs[id] = struct{}{}
	}
	if name != "" {
		e.Names[name] = struct{}{}
	}
}

// Excludes 判断 (id, name) 是否被排除。
func (e Exclusion) Excludes(id, name string) bool {
	if e.Mode == ByName {
		_, ok := e.Names[name]
		return ok
	}
	_, ok := e.IDs[id]
	return ok
}

// Len 返回当前模式下的排除条目数。
func (e Exclusion) Len() int {
	if e.Mode == ByName {
		return len(e.Names)
	}
	return len(e.IDs)
}

// Scope 是排除集合的来源。
type Scope int

const (
	// ScopePlayed 排除用户玩过的全部物品
	ScopePlayed Scope = iota
	// ScopeSeeds 只排除用户的种子集合（TopN）
	ScopeSeeds
)

// ParseScope 解析排除范围。
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "played":
		return ScopePlayed, nil
	case "seeds", "top":
		return ScopeSeeds, nil
	}
	return ScopePlayed, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, fmt.Sprintf("filter: unknown exclusion scope %q", s))
}

// PlayedFilter 过滤掉用户已玩过的物品（由 SeedNode 装载到 rctx.User）。
type PlayedFilter struct {
	Mode  Mode
	Scope Scope
}

func (f *PlayedFilter) Name() string {
	return "filter.played"
}

func (f *PlayedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil || rctx.User == nil {
		return false, nil
	}
	return f.Exclusion(rctx.User).Excludes(item.ID, item.Name), nil
}

// Exclusion 返回该过滤器对应用户的排除集合。
func (f *PlayedFilter) Exclusion(p *core.UserProfile) Exclusion {
	if f.Scope == ScopeSeeds {
		return ExclusionFromItems(f.Mode, p.Seeds)
	}
	return ExclusionFromProfile(f.Mode, p)
}
