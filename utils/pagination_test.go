package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePage(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		total      int64
		wantNumber int
		wantPages  int
	}{
		{"first page of 25", "1", 25, 1, 3},
		{"middle page", "2", 25, 2, 3},
		{"last partial page", "3", 25, 3, 3},
		{"past the end clamps to last", "100", 25, 3, 3},
		{"zero clamps to first", "0", 25, 1, 3},
		{"negative clamps to first", "-4", 25, 1, 3},
		{"garbage clamps to first", "abc", 25, 1, 3},
		{"missing clamps to first", "", 25, 1, 3},
		{"empty set still has one page", "7", 0, 1, 1},
		{"exact multiple", "3", 30, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ResolvePage(tt.raw, tt.total)
			assert.Equal(t, tt.wantNumber, p.Number)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, PageSize, p.Size)
			assert.Equal(t, tt.total, p.Total)
		})
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, ResolvePage("1", 25).Offset())
	assert.Equal(t, 10, ResolvePage("2", 25).Offset())
	assert.Equal(t, 20, ResolvePage("3", 25).Offset())
	// clamped page offsets stay within range
	assert.Equal(t, 20, ResolvePage("100", 25).Offset())
}
