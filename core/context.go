package core

import (
	"github.com/rushteam/playrec/pkg/conv"
)

// 常用请求参数 key
const (
	ParamK         = "k"          // 推荐条数
	ParamExclusion = "exclusion"  // 排除模式 id|name
	ParamNeighborK = "neighbor_k" // 近邻用户数
)

// RecommendContext 承载用户/请求信息，贯穿整个 Pipeline 透传。
// 每个请求独立创建，节点之间不共享跨请求状态。
type RecommendContext struct {
	UserID    string
	RequestID string
	Mode      string

	// User 是请求内用户画像，由 SeedNode 填充
	User *UserProfile

	// Params 请求级参数：k、exclusion 等
	Params map[string]any
}

// GetUserProfile 获取用户画像，不存在时创建空画像。
func (rctx *RecommendContext) GetUserProfile() *UserProfile {
	if rctx.User == nil {
		rctx.User = NewUserProfile(rctx.UserID)
	}
	return rctx.User
}

// ParamInt 读取整型参数，缺失或类型不符时返回 def。
func (rctx *RecommendContext) ParamInt(key string, def int) int {
	if rctx == nil || rctx.Params == nil {
		return def
	}
	if v, ok := conv.ToInt(rctx.Params[key]); ok {
		return v
	}
	return def
}

// ParamString 读取字符串参数。
func (rctx *RecommendContext) ParamString(key, def string) string {
	if rctx == nil || rctx.Params == nil {
		return def
	}
	if v, ok := rctx.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}
