package repository

import "testing"

func TestChunkRows(t *testing.T) {
	rows := make([]int, 250)
	for i := range rows {
		rows[i] = i
	}

	chunks := chunkRows(rows, BatchSize)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestChunkRowsEmpty(t *testing.T) {
	if chunks := chunkRows([]int{}, BatchSize); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestNilEmpty(t *testing.T) {
	if v := nilEmpty(""); v != nil {
		t.Errorf("nilEmpty(\"\") = %v, want nil", v)
	}
	if v := nilEmpty("x"); v != "x" {
		t.Errorf("nilEmpty(\"x\") = %v, want \"x\"", v)
	}
}

func TestNilZeroInt(t *testing.T) {
	if v := nilZeroInt(0); v != nil {
		t.Errorf("nilZeroInt(0) = %v, want nil", v)
	}
	if v := nilZeroInt(5); v != 5 {
		t.Errorf("nilZeroInt(5) = %v, want 5", v)
	}
}
