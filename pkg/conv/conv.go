// Package conv 把节点配置（YAML/JSON 解码后的 map）与请求参数转成具体类型。
package conv

import (
	"math"
	"strconv"
)

// ToInt 接受各类整数、浮点（截断）与十进制字符串。
func ToInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float32:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(x)
		return n, err == nil
	}
	return 0, false
}

// SliceAnyToString 把 []any 或 []string 转成 []string。
// YAML 会把纯数字的物品 ID 解成数字，这里按整数格式还原；其他类型的元素丢弃。
func SliceAnyToString(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := idString(e); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func idString(e any) (string, bool) {
	switch x := e.(type) {
	case string:
		return x, true
	case float32:
		return formatID(float64(x)), true
	case float64:
		return formatID(x), true
	}
	if n, ok := ToInt(e); ok {
		return strconv.Itoa(n), true
	}
	return "", false
}

func formatID(f float64) string {
	return strconv.FormatFloat(math.Round(f), 'f', 0, 64)
}

// ConfigGet 取 m[key] 并断言为 T；缺失或类型不符时返回 def。
func ConfigGet[T any](m map[string]any, key string, def T) T {
	if v, ok := m[key].(T); ok {
		return v
	}
	return def
}

// ConfigGetInt64 取整数配置；YAML 解出 int，JSON 解出 float64，两者都接受。
func ConfigGetInt64(m map[string]any, key string, def int64) int64 {
	if n, ok := ToInt(m[key]); ok {
		return int64(n)
	}
	return def
}
