// Package score 实现两两相似度打分：余弦相似度与 Spearman 秩相关。
package score

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/playrec/core"
)

// Metric 是相似度度量。
type Metric int

const (
	// Cosine 余弦相似度，取值 [-1, 1]
	Cosine Metric = iota
	// Spearman 秩相关系数（并列取平均秩），取值 [-1, 1]
	Spearman
)

func (m Metric) String() string {
	switch m {
	case Spearman:
		return "spearman"
	default:
		return "cosine"
	}
}

// ParseMetric 解析度量名称。
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cosine", "cos":
		return Cosine, nil
	case "spearman", "rank":
		return Spearman, nil
	}
	return Cosine, core.NewDomainError(core.ModuleScore, core.ErrorCodeInvalidInput, fmt.Sprintf("score: unknown metric %q", s))
}

// Func 返回度量对应的打分函数。
func (m Metric) Func() func(a, b []float64) (float64, error) {
	return func(a, b []float64) (float64, error) {
		return Score(a, b, m)
	}
}

// Score 计算 a 与 b 的相似度。
//
// 长度不一致或为空返回 DIMENSION_MISMATCH（调用方跳过该对）。
// 退化输入（零向量、零方差）返回 0，永不返回 NaN。
func Score(a, b []float64, metric Metric) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, core.NewDimensionMismatch(core.ModuleScore, len(a), len(b))
	}
	var s float64
	switch metric {
	case Spearman:
		s = spearman(a, b)
	default:
		s = cosine(a, b)
	}
	if math.IsNaN(s) {
		return 0, nil
	}
	return s, nil
}

// CosineSimilarity 是 Score(a, b, Cosine) 的便捷形式。
func CosineSimilarity(a, b []float64) (float64, error) {
	return Score(a, b, Cosine)
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	s := floats.Dot(a, b) / (na * nb)
	// 浮点误差可能略微越界
	return math.Max(-1, math.Min(1, s))
}

func spearman(a, b []float64) float64 {
	if len(a) < 2 {
		return 0
	}
	ra, rb := Rank(a), Rank(b)
	if stat.Variance(ra, nil) == 0 || stat.Variance(rb, nil) == 0 {
		return 0
	}
	s := stat.Correlation(ra, rb, nil)
	return math.Max(-1, math.Min(1, s))
}

// Rank 返回 1 起始的秩，并列值取平均秩。
func Rank(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return values[idx[i]] < values[idx[j]]
	})
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}
