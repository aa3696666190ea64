package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		c, i, a, l int
		wantScore  int
		wantLevel  Level
	}{
		{"moderate impact doubled likelihood", 3, 3, 3, 2, 18, LevelMedium},
		{"floor", 1, 1, 1, 1, 3, LevelLow},
		{"ceiling", 5, 5, 5, 5, 75, LevelHigh},
		{"highest score below medium band", 2, 2, 3, 2, 14, LevelLow},
		{"lowest score in medium band", 1, 1, 3, 3, 15, LevelMedium},
		{"highest score below high band", 2, 2, 3, 5, 35, LevelMedium},
		{"lowest score in high band", 3, 4, 5, 3, 36, LevelHigh},
		{"zero factors clamp to floor", 0, 0, 0, 0, 3, LevelLow},
		{"oversized factors clamp to ceiling", 9, 9, 9, 9, 75, LevelHigh},
		{"negative factor clamps to floor", -3, 1, 1, 1, 3, LevelLow},
		{"typical residual assessment", 2, 2, 2, 2, 12, LevelLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.c, tt.i, tt.a, tt.l)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLevel, got.Level)
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-100, 1},
		{0, 1},
		{1, 1},
		{3, 3},
		{5, 5},
		{6, 5},
		{100, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in), "Clamp(%d)", tt.in)
	}
}

func TestLevelFor_Boundaries(t *testing.T) {
	assert.Equal(t, LevelLow, LevelFor(MinScore))
	assert.Equal(t, LevelLow, LevelFor(14))
	assert.Equal(t, LevelMedium, LevelFor(15))
	assert.Equal(t, LevelMedium, LevelFor(35))
	assert.Equal(t, LevelHigh, LevelFor(36))
	assert.Equal(t, LevelHigh, LevelFor(MaxScore))
}

func TestLevel_IsValid(t *testing.T) {
	assert.True(t, LevelLow.IsValid())
	assert.True(t, LevelMedium.IsValid())
	assert.True(t, LevelHigh.IsValid())
	assert.False(t, Level("CRITICAL").IsValid())
	assert.False(t, Level("").IsValid())
}
