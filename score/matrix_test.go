package score

import (
	"testing"

	"github.com/rushteam/playrec/core"
)

func item(id string, vec ...float64) *core.Item {
	it := core.NewItem(id)
	it.Vector = vec
	return it
}

func TestNewMatrix_SkipsMismatchedPairs(t *testing.T) {
	src := []*core.Item{item("a", 1, 0), item("b", 1, 2, 3)}
	dst := []*core.Item{item("x", 1, 0), item("y", 0, 1)}

	m := NewMatrix(src, dst, Cosine)
	if m.Rows != 2 || m.Cols != 2 {
		t.Fatalf("shape = %dx%d", m.Rows, m.Cols)
	}
	if m.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", m.Skipped())
	}
	if v, ok := m.At(0, 0); !ok || v != 1 {
		t.Errorf("At(0,0) = %v,%v", v, ok)
	}
	if _, ok := m.At(1, 0); ok {
		t.Errorf("At(1,0) should be invalid")
	}
	ph := m.Placeholder()
	if ph[1][1] != 0 {
		t.Errorf("placeholder = %v, want 0", ph[1][1])
	}
}

func TestFromValues(t *testing.T) {
	m := FromValues([][]float64{{0.9, 0.1}, {0.2, 0.8}, {0.5, 0.5}})
	if m.Rows != 3 || m.Cols != 2 || m.Skipped() != 0 {
		t.Fatalf("unexpected matrix %+v", m)
	}
	if v, ok := m.At(2, 1); !ok || v != 0.5 {
		t.Errorf("At(2,1) = %v,%v", v, ok)
	}
}

func TestFromValues_RaggedRowsPadInvalid(t *testing.T) {
	m := FromValues([][]float64{{0.9}, {0.2, 0.8, 0.4}, {}})
	if m.Rows != 3 || m.Cols != 3 || m.Skipped() != 5 {
		t.Fatalf("unexpected matrix %+v", m)
	}
	for i := 0; i < m.Rows; i++ {
		if len(m.Values[i]) != m.Cols || len(m.Valid[i]) != m.Cols {
			t.Fatalf("row %d not padded: %v %v", i, m.Values[i], m.Valid[i])
		}
	}
	if v, ok := m.At(0, 0); !ok || v != 0.9 {
		t.Errorf("At(0,0) = %v,%v", v, ok)
	}
	if _, ok := m.At(0, 2); ok {
		t.Error("padded cell should be invalid")
	}
	if _, ok := m.At(2, 0); ok {
		t.Error("empty row should be all invalid")
	}
}
