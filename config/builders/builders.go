package builders

import (
	"fmt"

	"github.com/rushteam/playrec/config"
	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/filter"
	"github.com/rushteam/playrec/pipeline"
	"github.com/rushteam/playrec/pkg/conv"
	"github.com/rushteam/playrec/rank"
	"github.com/rushteam/playrec/recall"
	"github.com/rushteam/playrec/rerank"
	"github.com/rushteam/playrec/score"
)

func init() {
	config.Register("recall.seed", BuildSeedNode)
	config.Register("recall.pool", BuildPoolNode)
	config.Register("recall.neighbors", BuildNeighborNode)
	config.Register("recall.neighbor_vote", BuildNeighborVoteNode)
	config.Register("recall.global", BuildGlobalNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rank.centroid", BuildCentroidNode)
	config.Register("rank.maxsim", BuildMaxSimNode)
	config.Register("rank.frequency", BuildFrequencyNode)
	config.Register("rerank.topn", BuildTopNNode)
}

func needStore(deps pipeline.Deps) error {
	if deps.Store == nil {
		return fmt.Errorf("store dependency is required")
	}
	return nil
}

func order(cfg map[string]interface{}) (core.Order, error) {
	return core.ParseOrder(conv.ConfigGet(cfg, "order", ""))
}

func exclusion(cfg map[string]interface{}) (filter.Mode, filter.Scope, error) {
	mode, err := filter.ParseMode(conv.ConfigGet(cfg, "exclusion", ""))
	if err != nil {
		return mode, 0, err
	}
	scope, err := filter.ParseScope(conv.ConfigGet(cfg, "scope", ""))
	return mode, scope, err
}

func metric(cfg map[string]interface{}) (score.Metric, error) {
	return score.ParseMetric(conv.ConfigGet(cfg, "metric", ""))
}

func BuildSeedNode(cfg map[string]interface{}, deps pipeline.Deps) (pipeline.Node, error) {
	if err := needStore(deps); err != nil {
		return nil, err
	}
	o, err := order(cfg)
	if err != nil {
		return nil, err
	}
	return &recall.SeedNode{
		Builder: recall.NewTopKBuilder(deps.Store),
		K:       int(conv.ConfigGetInt64(cfg, "k", 0)),
		Order:   o,
	}, nil
}

func BuildPoolNode(cfg map[string]interface{}, deps pipeline.Deps) (pipeline.Node, error) {
	if err := needStore(deps); err != nil {
		return nil, err
	}
	mode, scope, err := exclusion(cfg)
	if err != nil {
		return nil, err
	}
	return &recall.PoolNode{
		Builder:      recall.NewPoolBuilder(deps.Store),
		Mode:         mode,
		Scope:        scope,
		UseNeighbors: conv.ConfigGet(cfg, "neighbors", false),
	}, nil
}

func BuildNeighborNode(cfg map[string]interface{}, deps pipeline.Deps) (pipeline.Node, error) {
	if err := needStore(deps); err != nil {
		return nil, err
	}
	return &recall.NeighborNode{
		Store: deps.Store,
		K:     int(conv.ConfigGetInt64(cfg, "k", 0)),
	}, nil
}

func BuildNeighborVoteNode(cfg map[string]interface{}, deps pipeline.Deps) (pipeline.Node, error) {
	if err := needStore(deps); err != nil {
		return nil, err
	}
	mode, scope, err := exclusion(cfg)
	if err != nil {
		return nil, err
	}
	return &recall.NeighborVoteNode{
		Store: deps.Store,
		Top:   int(conv.ConfigGetInt64(cfg, "top", 0)),
		Mode:  mode,
		Scope: scope,
	}, nil
}

func BuildGlobalNode(cfg map[string]interface{}, deps pipeline.Deps) (pipeline.Node, error) {
	if err := needStore(deps); err != nil {
		return nil, err
	}
	o, err := order(cfg)
	if err != nil {
		return nil, err
	}
	mode, scope, err := exclusion(cfg)
	if err != nil {
		return nil, err
	}
	return &recall.Hot{
		Builder: recall.NewTopKBuilder(deps.Store),
		K:       int(conv.ConfigGetInt64(cfg, "k", 0)),
		Order:   o,
		Mode:    mode,
		Scope:   scope,
	}, nil
}

// BuildFilterNode 支持的过滤器：played / blacklist / expr。
func BuildFilterNode(cfg map[string]interface{}, _ pipeline.Deps) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "played":
			mode, scope, err := exclusion(filterMap)
			if err != nil {
				return nil, err
			}
			filters = append(filters, &filter.PlayedFilter{Mode: mode, Scope: scope})

		case "blacklist":
			ids := conv.SliceAnyToString(filterMap["item_ids"])
			names := conv.SliceAnyToString(filterMap["names"])
			filters = append(filters, filter.NewBlacklistFilter(ids, names))

		case "expr":
			f, err := filter.NewExprFilter(conv.ConfigGet(filterMap, "expr", ""), conv.ConfigGet(filterMap, "keep", false))
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)

		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}

	return &filter.FilterNode{
		Filters:    filters,
		AllowEmpty: conv.ConfigGet(cfg, "allow_empty", false),
	}, nil
}

func BuildCentroidNode(cfg map[string]interface{}, deps pipeline.Deps) (pipeline.Node, error) {
	m, err := metric(cfg)
	if err != nil {
		return nil, err
	}
	node := &rank.CentroidNode{Metric: m}
	if conv.ConfigGet(cfg, "persist", false) {
		node.Writer = deps.Derived
	}
	return node, nil
}

func BuildMaxSimNode(cfg map[string]interface{}, _ pipeline.Deps) (pipeline.Node, error) {
	m, err := metric(cfg)
	if err != nil {
		return nil, err
	}
	return &rank.MaxSimNode{Metric: m}, nil
}

func BuildFrequencyNode(_ map[string]interface{}, _ pipeline.Deps) (pipeline.Node, error) {
	return &rank.FrequencyNode{}, nil
}

func BuildTopNNode(cfg map[string]interface{}, _ pipeline.Deps) (pipeline.Node, error) {
	return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
}
