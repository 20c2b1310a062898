package vector

import (
	"math"
	"reflect"
	"testing"

	"github.com/rushteam/playrec/core"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    []float64
		wantErr bool
	}{
		{name: "brace literal", raw: "{1,2,3}", want: []float64{1, 2, 3}},
		{name: "bracket literal", raw: "[1,2,3]", want: []float64{1, 2, 3}},
		{name: "whitespace trimmed", raw: "  [ 0.5 ,\t-1.25 , 3e-2 ] ", want: []float64{0.5, -1.25, 0.03}},
		{name: "bytes", raw: []byte("{4,5}"), want: []float64{4, 5}},
		{name: "nil", raw: nil, want: []float64{}},
		{name: "empty string", raw: "", want: []float64{}},
		{name: "empty brace", raw: "{}", want: []float64{}},
		{name: "empty bracket", raw: "[ ]", want: []float64{}},
		{name: "float64 slice", raw: []float64{1.5, 2}, want: []float64{1.5, 2}},
		{name: "float32 slice", raw: []float32{0.5, 2}, want: []float64{0.5, 2}},
		{name: "int slice", raw: []int{1, 2}, want: []float64{1, 2}},
		{name: "int64 slice", raw: []int64{7}, want: []float64{7}},
		{name: "any slice", raw: []any{float32(1), 2.5, int64(3)}, want: []float64{1, 2.5, 3}},
		{name: "empty slice", raw: []float64{}, want: []float64{}},
		{name: "no brackets", raw: "1,2,3", wantErr: true},
		{name: "unbalanced", raw: "[1,2,3}", wantErr: true},
		{name: "single bracket", raw: "[", wantErr: true},
		{name: "non numeric token", raw: "[1,abc,3]", wantErr: true},
		{name: "empty token", raw: "[1,,3]", wantErr: true},
		{name: "nan literal", raw: "[1,NaN]", wantErr: true},
		{name: "inf literal", raw: "{Inf}", wantErr: true},
		{name: "nan in slice", raw: []float64{math.NaN()}, wantErr: true},
		{name: "string in any slice", raw: []any{"1"}, wantErr: true},
		{name: "unsupported type", raw: 42, wantErr: true},
		{name: "nested", raw: "[[1,2]]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%v) expected error, got %v", tt.raw, got)
				}
				if !core.IsParseError(err) {
					t.Fatalf("expected PARSE_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%v) error: %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_BraceEqualsBracket(t *testing.T) {
	a, err := Normalize("{1,2,3}")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize("[1,2,3]")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("%v != %v", a, b)
	}
}

func TestNormalize_DoesNotAlias(t *testing.T) {
	in := []float64{1, 2}
	out, _ := Normalize(in)
	out[0] = 99
	if in[0] != 1 {
		t.Errorf("input modified")
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	vectors := [][]float64{
		{},
		{0},
		{1, 2, 3},
		{0.1, -0.2, 1e-12, 123456.789, math.SmallestNonzeroFloat64, math.MaxFloat64},
		{1.0 / 3.0, 2.0 / 3.0},
	}
	for _, style := range []Style{StyleBracket, StyleBrace} {
		for _, v := range vectors {
			s := Format(v, style)
			got, err := Normalize(s)
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", s, err)
			}
			if len(got) != len(v) {
				t.Fatalf("len(%q) = %d, want %d", s, len(got), len(v))
			}
			for i := range v {
				if got[i] != v[i] {
					t.Errorf("round trip %q[%d] = %v, want %v", s, i, got[i], v[i])
				}
			}
		}
	}
	if got := Format([]float64{1, 2.5}, StyleBrace); got != "{1,2.5}" {
		t.Errorf("Format brace = %q", got)
	}
}

func TestModeDimension(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float64
		want    int
		wantOK  bool
	}{
		{"majority", [][]float64{{1, 2}, {1, 2}, {1, 2, 3}}, 2, true},
		{"tie picks smaller", [][]float64{{1, 2, 3}, {1, 2}}, 2, true},
		{"empty ignored", [][]float64{{}, {}, {1, 2, 3}}, 3, true},
		{"all empty", [][]float64{{}, nil}, 0, false},
		{"none", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ModeDimension(tt.vectors)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ModeDimension() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	got, err := Centroid([][]float64{{1, 0}, {0, 1}, {2, 2}})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Centroid() = %v, want %v", got, want)
	}

	if _, err := Centroid(nil); !core.IsInsufficientData(err) {
		t.Errorf("expected INSUFFICIENT_DATA, got %v", err)
	}
	if _, err := Centroid([][]float64{{1, 2}, {1}}); !core.IsDimensionMismatch(err) {
		t.Errorf("expected DIMENSION_MISMATCH, got %v", err)
	}
}
