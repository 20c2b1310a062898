package score

import (
	"github.com/rushteam/playrec/core"
	"github.com/rushteam/playrec/pkg/logging"
	"github.com/rushteam/playrec/pkg/metrics"
)

// Matrix 是 N×M 的两两得分矩阵，仅在单次请求内使用。
// Valid[i][j] 为 false 表示该对因维度不一致被跳过。
type Matrix struct {
	Metric Metric
	Rows   int
	Cols   int
	Values [][]float64
	Valid  [][]bool

	skipped int
}

// NewMatrix 对 src × dst 的物品向量两两打分。
func NewMatrix(src, dst []*core.Item, metric Metric) *Matrix {
	a := make([][]float64, len(src))
	for i, it := range src {
		a[i] = it.Vector
	}
	b := make([][]float64, len(dst))
	for j, it := range dst {
		b[j] = it.Vector
	}
	return Compute(a, b, metric)
}

// Compute 对两组向量两两打分。
func Compute(src, dst [][]float64, metric Metric) *Matrix {
	m := &Matrix{
		Metric: metric,
		Rows:   len(src),
		Cols:   len(dst),
		Values: make([][]float64, len(src)),
		Valid:  make([][]bool, len(src)),
	}
	for i, a := range src {
		m.Values[i] = make([]float64, len(dst))
		m.Valid[i] = make([]bool, len(dst))
		for j, b := range dst {
			s, err := Score(a, b, metric)
			if err != nil {
				m.skipped++
				continue
			}
			m.Values[i][j] = s
			m.Valid[i][j] = true
		}
	}
	if m.skipped > 0 {
		metrics.RecordSkip(metrics.ReasonDimension, m.skipped)
		logging.Warn().
			Str("metric", metric.String()).
			Int("skipped", m.skipped).
			Msg("score: pairs skipped on dimension mismatch")
	}
	return m
}

// At 返回 (i, j) 的得分以及是否有效。
func (m *Matrix) At(i, j int) (float64, bool) {
	return m.Values[i][j], m.Valid[i][j]
}

// Skipped 返回被跳过的对数。
func (m *Matrix) Skipped() int {
	return m.skipped
}

// Placeholder 返回矩阵的副本，无效位置填 0。
func (m *Matrix) Placeholder() [][]float64 {
	out := make([][]float64, m.Rows)
	for i := range m.Values {
		out[i] = append([]float64(nil), m.Values[i]...)
	}
	return out
}

// FromValues 由已知得分构造矩阵，用于外部算好的得分。
// 列数取最长的一行；较短的行补齐为无效单元格并计入 Skipped。
func FromValues(values [][]float64) *Matrix {
	m := &Matrix{Rows: len(values), Values: make([][]float64, len(values)), Valid: make([][]bool, len(values))}
	for _, row := range values {
		m.Cols = max(m.Cols, len(row))
	}
	for i, row := range values {
		m.Values[i] = make([]float64, m.Cols)
		copy(m.Values[i], row)
		m.Valid[i] = make([]bool, m.Cols)
		for j := range row {
			m.Valid[i][j] = true
		}
		m.skipped += m.Cols - len(row)
	}
	return m
}
