package match

import (
	"math"

	"github.com/rushteam/playrec/score"
)

// optimal 求解最大总相似度的一对一指派，配对数为 min(N, M)。
// 矩阵补齐为 n×n（n = max(N, M)），补齐单元格代价为 0；复杂度 O(n³)。
// 无效单元格的代价大于任意 n 个有效代价（1 - sim ∈ [0, 2]）之和，只在别无选择时被选中，随后丢弃。
//
// 因此目标是字典序的：先使有效配对数最多，再在此前提下使总相似度最大。
// 全部有效的矩阵上总分不低于 Positional 与 Greedy；含无效单元格时不保证，
// 例如对角线无效、其余为负分时，Positional 无配对（总分 0），这里会配出两对负分。
func optimal(m *score.Matrix) []Pair {
	n := max(m.Rows, m.Cols)
	if m.Rows == 0 || m.Cols == 0 {
		return nil
	}
	invalidCost := 2*float64(n) + 1
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		if i >= m.Rows {
			continue
		}
		for j := 0; j < m.Cols; j++ {
			if v, ok := m.At(i, j); ok {
				cost[i][j] = 1 - v
			} else {
				cost[i][j] = invalidCost
			}
		}
	}

	assign := hungarian(cost)
	out := make([]Pair, 0, min(m.Rows, m.Cols))
	for i := 0; i < m.Rows; i++ {
		j := assign[i]
		if j < 0 || j >= m.Cols {
			continue
		}
		if v, ok := m.At(i, j); ok {
			out = append(out, Pair{Source: i, Target: j, Score: v})
		}
	}
	return out
}

// hungarian 对 n×n 代价矩阵求最小代价完美匹配，返回 row -> col。
// 基于势函数（u, v）的 Kuhn–Munkres 实现。
func hungarian(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)   // p[j]：匹配到列 j 的行（1 起始），0 表示未匹配
	way := make([]int, n+1) // 增广路径上的前驱列
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			assign[p[j]-1] = j - 1
		}
	}
	return assign
}
