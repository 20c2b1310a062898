package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same code any module",
			err:    NewEmptyPool(ModuleRecall, "recall: no candidates"),
			target: ErrEmptyPool,
			want:   true,
		},
		{
			name:   "wrapped with fmt",
			err:    fmt.Errorf("request u1: %w", NewParseError(ModuleVector, "vector: bad token %q", "x")),
			target: ErrParse,
			want:   true,
		},
		{
			name:   "different code",
			err:    NewNotFound(ModuleStore, "store: user %s", "u1"),
			target: ErrParse,
			want:   false,
		},
		{
			name:   "module mismatch",
			err:    NewNotFound(ModuleRecall, "recall: user"),
			target: ErrStoreNotFound,
			want:   false,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			target: ErrUnavailable,
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUnavailable(ModuleStore, "store: duckdb", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if !IsUnavailable(fmt.Errorf("wrap: %w", err)) {
		t.Fatalf("expected IsUnavailable through wrapping")
	}
	if got, want := err.Error(), "store: duckdb: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCheckHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"parse", NewParseError(ModuleVector, "bad"), IsParseError, true},
		{"dimension", NewDimensionMismatch(ModuleScore, 3, 4), IsDimensionMismatch, true},
		{"empty pool is no recommendation", NewEmptyPool(ModuleRecall, "empty"), IsNoRecommendation, true},
		{"insufficient is no recommendation", NewInsufficientData(ModuleRank, "none"), IsNoRecommendation, true},
		{"not found is not no recommendation", NewNotFound(ModuleStore, "missing"), IsNoRecommendation, false},
		{"nil", nil, IsNotFound, false},
		{"store not found", fmt.Errorf("derived: %w", ErrStoreNotFound), IsStoreNotFound, true},
		{"recall not found is not a store miss", NewNotFound(ModuleRecall, "user"), IsStoreNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q", got)
	}
	if got := CodeOf(errors.New("x")); got != ErrorCodeInternalError {
		t.Errorf("CodeOf(plain) = %q", got)
	}
	if got := CodeOf(fmt.Errorf("a: %w", ErrStoreNotFound)); got != ErrorCodeNotFound {
		t.Errorf("CodeOf(wrapped) = %q", got)
	}
}
