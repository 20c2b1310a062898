package core

import (
	"errors"
	"fmt"
)

// 错误码。调用方按错误码分支，而不是按消息文本。
const (
	ErrorCodeNotFound          = "NOT_FOUND"
	ErrorCodeUnavailable       = "UNAVAILABLE"
	ErrorCodeInvalidInput      = "INVALID_INPUT"
	ErrorCodeInternalError     = "INTERNAL_ERROR"
	ErrorCodeParse             = "PARSE_ERROR"
	ErrorCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorCodeEmptyPool         = "EMPTY_POOL"        // 过滤后没有候选
	ErrorCodeInsufficientData  = "INSUFFICIENT_DATA" // 数据不足以计算
)

// 产生错误的模块。
const (
	ModuleStore     = "store"
	ModuleVector    = "vector"
	ModuleScore     = "score"
	ModuleMatch     = "match"
	ModuleRecall    = "recall"
	ModuleRank      = "rank"
	ModuleRecommend = "recommend"
	ModuleBatch     = "batch"
)

// DomainError 带错误码与模块名，可选地包装底层错误。
// errors.Is 按 Code 匹配；目标的 Module 非空时还要求模块一致。
type DomainError struct {
	Code    string
	Message string
	Module  string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && (t.Module == "" || t.Module == e.Module)
}

// 不限模块的哨兵错误，用于 errors.Is。
var (
	ErrParse            = &DomainError{Code: ErrorCodeParse, Message: "parse error"}
	ErrNotFound         = &DomainError{Code: ErrorCodeNotFound, Message: "not found"}
	ErrEmptyPool        = &DomainError{Code: ErrorCodeEmptyPool, Message: "empty candidate pool"}
	ErrUnavailable      = &DomainError{Code: ErrorCodeUnavailable, Message: "unavailable"}
	ErrInsufficientData = &DomainError{Code: ErrorCodeInsufficientData, Message: "insufficient data"}

	// ErrStoreNotFound 是存储层 key / 派生向量不存在。
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")
)

func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{Module: module, Code: code, Message: message}
}

func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{Module: module, Code: code, Message: message, Err: err}
}

func NewParseError(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeParse, fmt.Sprintf(format, args...))
}

func NewNotFound(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeNotFound, fmt.Sprintf(format, args...))
}

func NewDimensionMismatch(module string, want, got int) *DomainError {
	return NewDomainError(module, ErrorCodeDimensionMismatch,
		fmt.Sprintf("%s: dimension mismatch: %d vs %d", module, want, got))
}

func NewEmptyPool(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeEmptyPool, fmt.Sprintf(format, args...))
}

func NewInsufficientData(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeInsufficientData, fmt.Sprintf(format, args...))
}

func NewUnavailable(module, message string, err error) *DomainError {
	return WrapDomainError(module, ErrorCodeUnavailable, message, err)
}

// GetDomainError 返回错误链上第一个 DomainError，没有则为 nil。
func GetDomainError(err error) *DomainError {
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return nil
}

// CodeOf 返回错误码；nil 为空串，非 DomainError 记为 INTERNAL_ERROR。
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if de := GetDomainError(err); de != nil {
		return de.Code
	}
	return ErrorCodeInternalError
}

func hasCode(err error, code string) bool {
	de := GetDomainError(err)
	return de != nil && de.Code == code
}

func IsNotFound(err error) bool          { return hasCode(err, ErrorCodeNotFound) }
func IsUnavailable(err error) bool       { return hasCode(err, ErrorCodeUnavailable) }
func IsParseError(err error) bool        { return hasCode(err, ErrorCodeParse) }
func IsDimensionMismatch(err error) bool { return hasCode(err, ErrorCodeDimensionMismatch) }
func IsEmptyPool(err error) bool         { return hasCode(err, ErrorCodeEmptyPool) }
func IsInsufficientData(err error) bool  { return hasCode(err, ErrorCodeInsufficientData) }
func IsInvalidInput(err error) bool      { return hasCode(err, ErrorCodeInvalidInput) }

// IsStoreNotFound 只匹配存储层产生的 NOT_FOUND。
func IsStoreNotFound(err error) bool {
	de := GetDomainError(err)
	return de != nil && de.Module == ModuleStore && de.Code == ErrorCodeNotFound
}

// IsNoRecommendation 报告是否属于“无可推荐”：EMPTY_POOL 或 INSUFFICIENT_DATA。
// 批处理把这类用户单独计数，不算失败。
func IsNoRecommendation(err error) bool {
	return IsEmptyPool(err) || IsInsufficientData(err)
}
