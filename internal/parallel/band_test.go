package parallel

import "testing"

func TestSplitRows(t *testing.T) {
	tests := []struct {
		name   string
		height int
		band   int
		want   []Band
	}{
		{"empty", 0, 4, nil},
		{"negative", -3, 4, nil},
		{"exact", 8, 4, []Band{{0, 4}, {4, 8}}},
		{"remainder", 10, 4, []Band{{0, 4}, {4, 8}, {8, 10}}},
		{"single row bands", 3, 1, []Band{{0, 1}, {1, 2}, {2, 3}}},
		{"band taller than image", 5, 100, []Band{{0, 5}}},
		{"default band", 40, 0, []Band{{0, 16}, {16, 32}, {32, 40}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitRows(tt.height, tt.band)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitRows(%d, %d) = %v, want %v", tt.height, tt.band, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("band %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitRowsCoversEveryRow(t *testing.T) {
	for height := 1; height <= 50; height++ {
		for band := 1; band <= 9; band++ {
			next, total := 0, 0
			for _, b := range SplitRows(height, band) {
				if b.Y0 != next {
					t.Fatalf("SplitRows(%d, %d): gap before %v", height, band, b)
				}
				if b.Rows() < 1 || b.Rows() > band {
					t.Fatalf("SplitRows(%d, %d): band %v has %d rows", height, band, b, b.Rows())
				}
				next = b.Y1
				total += b.Rows()
			}
			if total != height {
				t.Fatalf("SplitRows(%d, %d) covers %d rows", height, band, total)
			}
		}
	}
}
