package filter

import (
	"context"

	"github.com/rushteam/playrec/core"
)

// BlacklistFilter 是静态黑名单过滤器，按 ID 与展示名过滤（来自配置）。
type BlacklistFilter struct {
	ItemIDs []string
	Names   []string

	ex *Exclusion
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(itemIDs, names []string) *BlacklistFilter {
	f := &BlacklistFilter{ItemIDs: itemIDs, Names: names}
	ex := f.build()
	f.ex = &ex
	return f
}

func (f *BlacklistFilter) build() Exclusion {
	ex := NewExclusion(ByID)
	for _, id := range f.ItemIDs {
		ex.Add(id, "")
	}
	for _, name := range f.Names {
		ex.Add("", name)
	}
	return ex
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	_ context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	ex := f.ex
	if ex == nil {
		built := f.build()
		ex = &built
	}
	if _, ok := ex.IDs[item.ID]; ok {
		return true, nil
	}
	_, ok := ex.Names[item.Name]
	return ok, nil
}
