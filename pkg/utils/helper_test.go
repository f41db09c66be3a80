package utils

import "testing"

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 10},
		{"3", 3},
		{"0", 10},
		{"-4", 10},
		{"abc", 10},
	}
	for _, tt := range tests {
		if got := ParseInt(tt.in, 10); got != tt.want {
			t.Errorf("ParseInt(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPagination(t *testing.T) {
	if got := CalculateTotalPages(0, 10); got != 0 {
		t.Errorf("pages for empty = %d", got)
	}
	if got := CalculateTotalPages(21, 10); got != 3 {
		t.Errorf("pages for 21/10 = %d, want 3", got)
	}
	if got := CalculateTotalPages(20, 10); got != 2 {
		t.Errorf("pages for 20/10 = %d, want 2", got)
	}
	if got := CalculateOffset(1, 10); got != 0 {
		t.Errorf("offset page 1 = %d", got)
	}
	if got := CalculateOffset(3, 25); got != 50 {
		t.Errorf("offset page 3 = %d, want 50", got)
	}
}
