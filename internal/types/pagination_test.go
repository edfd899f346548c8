package types

import (
	"math"
	"testing"
)

func TestNewPageParams(t *testing.T) {
	tests := []struct {
		name             string
		page, pageSize   int
		wantPage, wantSz int
	}{
		{"defaults from zero", 0, 0, 1, 25},
		{"negative values", -3, -10, 1, 25},
		{"explicit values kept", 3, 10, 3, 10},
		{"page size clamped", 1, 500, 1, 100},
		{"page size at max", 2, 100, 2, 100},
		{"page size of one", 1, 1, 1, 1},
		{"huge page capped", 922337203685477580, 25, math.MaxInt / 25, 25},
		{"max int page", math.MaxInt, 100, math.MaxInt / 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPageParams(tt.page, tt.pageSize)
			if p.Page != tt.wantPage || p.PageSize != tt.wantSz {
				t.Errorf("NewPageParams(%d, %d) = %+v, want page=%d size=%d",
					tt.page, tt.pageSize, p, tt.wantPage, tt.wantSz)
			}
		})
	}
}

func TestPageParams_Offset(t *testing.T) {
	if got := NewPageParams(1, 25).Offset(); got != 0 {
		t.Errorf("page 1 offset = %d, want 0", got)
	}
	if got := NewPageParams(3, 25).Offset(); got != 50 {
		t.Errorf("page 3 offset = %d, want 50", got)
	}
	for _, size := range []int{1, 25, 100} {
		if got := NewPageParams(math.MaxInt, size).Offset(); got < 0 {
			t.Errorf("max page offset with size %d = %d, want non-negative", size, got)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 25, 1},
		{1, 25, 1},
		{25, 25, 1},
		{26, 25, 2},
		{100, 25, 4},
		{101, 100, 2},
		{5, 0, 1},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
