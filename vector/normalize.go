// Package vector 负责把存储中的原始向量统一解析为 []float64，
// 并提供维度众数、质心等向量集合工具。
package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/rushteam/playrec/core"
)

// Style 是向量文本字面量的括号风格。
type Style int

const (
	// StyleBracket 形如 [1,2,3]（pgvector 字面量）
	StyleBracket Style = iota
	// StyleBrace 形如 {1,2,3}（数组字面量）
	StyleBrace
)

// Normalize 将原始向量解析为 []float64。
//
// 支持：
//   - string / []byte：{a,b,c} 或 [a,b,c]，逗号分隔，token 两侧空白忽略
//   - []float64 / []float32 / []int / []int64 / []int32 / []any（元素为数值）
//   - nil、""、"{}"、"[]"、空切片：返回长度为 0 的向量
//
// 其它类型、无括号或括号不匹配的字符串、非数值 token（包括 NaN / Inf）返回 PARSE_ERROR。
// 返回值总是新分配的切片，不与输入共享底层数组。
func Normalize(raw any) ([]float64, error) {
	switch v := raw.(type) {
	case nil:
		return []float64{}, nil
	case string:
		return parseLiteral(v)
	case []byte:
		return parseLiteral(string(v))
	case []float64:
		out := make([]float64, len(v))
		for i, x := range v {
			if err := checkFinite(x, i); err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			f := float64(x)
			if err := checkFinite(f, i); err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	case []int:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	case []any:
		out := make([]float64, len(v))
		for i, x := range v {
			f, err := number(x, i)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, core.NewParseError(core.ModuleVector, "vector: unsupported type %T", raw)
}

func parseLiteral(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []float64{}, nil
	}
	lb, rb := s[0], s[len(s)-1]
	if len(s) < 2 || !((lb == '{' && rb == '}') || (lb == '[' && rb == ']')) {
		return nil, core.NewParseError(core.ModuleVector, "vector: malformed literal %q", abbreviate(s))
	}
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return []float64{}, nil
	}
	if strings.ContainsAny(inner, "{}[]") {
		return nil, core.NewParseError(core.ModuleVector, "vector: nested brackets in %q", abbreviate(s))
	}
	parts := strings.Split(inner, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		tok := strings.TrimSpace(p)
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleVector, core.ErrorCodeParse,
				fmt.Sprintf("vector: bad token %q at %d", tok, i), err)
		}
		if err := checkFinite(f, i); err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func number(x any, i int) (float64, error) {
	var f float64
	switch n := x.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, core.NewParseError(core.ModuleVector, "vector: element %d has type %T", i, x)
	}
	if err := checkFinite(f, i); err != nil {
		return 0, err
	}
	return f, nil
}

func checkFinite(f float64, i int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return core.NewParseError(core.ModuleVector, "vector: non-finite value at %d", i)
	}
	return nil
}

func abbreviate(s string) string {
	if len(s) > 32 {
		return s[:32] + "..."
	}
	return s
}

// Format 将向量编码为文本字面量，Normalize(Format(v, s)) 与 v 相等。
func Format(vec []float64, style Style) string {
	lb, rb := "[", "]"
	if style == StyleBrace {
		lb, rb = "{", "}"
	}
	var b strings.Builder
	b.WriteString(lb)
	for i, x := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteString(rb)
	return b.String()
}

// ModeDimension 返回非空向量中出现最多的维度；并列时取较小维度。
// 所有向量都为空时 ok 为 false。
func ModeDimension(vectors [][]float64) (dim int, ok bool) {
	counts := make(map[int]int)
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		counts[len(v)]++
	}
	best := 0
	for d, c := range counts {
		if c > best || (c == best && d < dim) {
			dim, best = d, c
		}
	}
	return dim, best > 0
}

// Centroid 返回向量的逐元素均值。
func Centroid(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, core.NewInsufficientData(core.ModuleVector, "vector: centroid of empty set")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, core.NewInsufficientData(core.ModuleVector, "vector: centroid of empty vectors")
	}
	sum := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, core.NewDimensionMismatch(core.ModuleVector, dim, len(v))
		}
		floats.Add(sum, v)
	}
	floats.Scale(1/float64(len(vectors)), sum)
	return sum, nil
}
