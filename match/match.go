// Package match 将 N×M 得分矩阵归约为配对列表与平均分。
//
// 策略：
//   - Positional：按位置配对 (i, i)
//   - Greedy：按目标顺序，每个目标取尚未使用的最佳来源（一对一）
//   - GreedyBySource：按来源顺序，每个来源取尚未使用的最佳目标（一对一）
//   - BestOf：每个目标取所有来源中的最大值（来源可重复，非一对一）
//   - Optimal：最小代价二分图指派（Kuhn–Munkres），代价为 1 - sim
//
// 所有策略只配对有效单元格；平均分只对已配对的单元格求均值。
package match

import (
	"fmt"
	"strings"

	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/score"
)

// Strategy 是配对策略。
type Strategy int

const (
	Positional Strategy = iota
	Greedy
	GreedyBySource
	BestOf
	Optimal
)

func (s Strategy) String() string {
	switch s {
	case Greedy:
		return "greedy"
	case GreedyBySource:
		return "greedy_source"
	case BestOf:
		return "best_of"
	case Optimal:
		return "optimal"
	default:
		return "positional"
	}
}

// ParseStrategy 解析策略名称。
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positional", "position":
		return Positional, nil
	case "greedy":
		return Greedy, nil
	case "greedy_source", "greedy-source":
		return GreedyBySource, nil
	case "best_of", "best-of", "bestof":
		return BestOf, nil
	case "", "optimal", "hungarian":
		return Optimal, nil
	}
	return Optimal, core.NewDomainError(core.ModuleMatch, core.ErrorCodeInvalidInput, fmt.Sprintf("match: unknown strategy %q", s))
}

// Pair 是一个配对：来源下标、目标下标、得分。
type Pair struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	Score  float64 `json:"score"`
}

// Result 是配对结果。
type Result struct {
	Strategy Strategy `json:"-"`
	Pairs    []Pair   `json:"pairs"`
	Total    float64  `json:"total"`
	Mean     float64  `json:"mean"`
}

// Match 按策略对矩阵配对。
func Match(m *score.Matrix, strategy Strategy) Result {
	var pairs []Pair
	switch strategy {
	case Greedy:
		pairs = greedyByTarget(m)
	case GreedyBySource:
		pairs = greedyBySource(m)
	case BestOf:
		pairs = bestOf(m)
	case Optimal:
		pairs = optimal(m)
	default:
		pairs = positional(m)
	}
	return newResult(strategy, pairs)
}

func newResult(strategy Strategy, pairs []Pair) Result {
	r := Result{Strategy: strategy, Pairs: pairs}
	if r.Pairs == nil {
		r.Pairs = []Pair{}
	}
	for _, p := range pairs {
		r.Total += p.Score
	}
	if len(pairs) > 0 {
		r.Mean = r.Total / float64(len(pairs))
	}
	return r
}

func positional(m *score.Matrix) []Pair {
	n := min(m.Rows, m.Cols)
	out := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		if v, ok := m.At(i, i); ok {
			out = append(out, Pair{Source: i, Target: i, Score: v})
		}
	}
	return out
}

func greedyByTarget(m *score.Matrix) []Pair {
	used := make([]bool, m.Rows)
	out := make([]Pair, 0, min(m.Rows, m.Cols))
	for j := 0; j < m.Cols; j++ {
		best, bestScore := -1, 0.0
		for i := 0; i < m.Rows; i++ {
			if used[i] {
				continue
			}
			if v, ok := m.At(i, j); ok && (best < 0 || v > bestScore) {
				best, bestScore = i, v
			}
		}
		if best >= 0 {
			used[best] = true
			out = append(out, Pair{Source: best, Target: j, Score: bestScore})
		}
	}
	return out
}

func greedyBySource(m *score.Matrix) []Pair {
	used := make([]bool, m.Cols)
	out := make([]Pair, 0, min(m.Rows, m.Cols))
	for i := 0; i < m.Rows; i++ {
		best, bestScore := -1, 0.0
		for j := 0; j < m.Cols; j++ {
			if used[j] {
				continue
			}
			if v, ok := m.At(i, j); ok && (best < 0 || v > bestScore) {
				best, bestScore = j, v
			}
		}
		if best >= 0 {
			used[best] = true
			out = append(out, Pair{Source: i, Target: best, Score: bestScore})
		}
	}
	return out
}

func bestOf(m *score.Matrix) []Pair {
	out := make([]Pair, 0, m.Cols)
	for j := 0; j < m.Cols; j++ {
		best, bestScore := -1, 0.0
		for i := 0; i < m.Rows; i++ {
			if v, ok := m.At(i, j); ok && (best < 0 || v > bestScore) {
				best, bestScore = i, v
			}
		}
		if best >= 0 {
			out = append(out, Pair{Source: best, Target: j, Score: bestScore})
		}
	}
	return out
}
