package utils

import "testing"

func TestMergeLabel(t *testing.T) {
	tests := []struct {
		a, b, want Label
	}{
		{Label{}, NewLabel("pool", "recall"), NewLabel("pool", "recall")},
		{NewLabel("pool", "recall"), Label{}, NewLabel("pool", "recall")},
		{NewLabel("pool", "recall"), NewLabel("topk", "recall"), NewLabel("pool|topk", "recall,recall")},
		{NewLabel("a", ""), NewLabel("b", "rank"), NewLabel("a|b", "rank")},
		{NewLabel("a", "recall"), NewLabel("b", ""), NewLabel("a|b", "recall")},
	}
	for _, tt := range tests {
		if got := MergeLabel(tt.a, tt.b); got != tt.want {
			t.Errorf("MergeLabel(%v, %v) = %v, 期望 %v", tt.a, tt.b, got, tt.want)
		}
	}
}
