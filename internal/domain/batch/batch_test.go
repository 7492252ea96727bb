package batch

import (
	"errors"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		want  []Range
	}{
		{"empty", 0, 100, nil},
		{"single partial", 20, 100, []Range{{0, 0, 20}}},
		{"exact", 200, 100, []Range{{0, 0, 100}, {1, 100, 200}}},
		{"remainder", 250, 100, []Range{{0, 0, 100}, {1, 100, 200}, {2, 200, 250}}},
		{"unbounded", 7, 0, []Range{{0, 0, 7}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.total, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d ranges, got %d (%v)", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Range: Range{Index: 1, Start: 100, End: 200}, Total: 3, Committed: 100, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose cause")
	}
	want := "batch 2/3 (items 100-199) failed after 100 committed: connection reset"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}

	shifted := err.Offset(40)
	if shifted.Range.Start != 140 || shifted.Range.End != 240 || shifted.Committed != 140 {
		t.Errorf("unexpected offset result: %+v", shifted)
	}
	if err.Range.Start != 100 {
		t.Error("Offset must not mutate the receiver")
	}
}
