package mastery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForPercent_Boundaries(t *testing.T) {
	tests := []struct {
		percent int
		want    Level
	}{
		{0, LevelNotStarted},
		{1, LevelBeginning},
		{39, LevelBeginning},
		{40, LevelDeveloping},
		{69, LevelDeveloping},
		{70, LevelProficient},
		{89, LevelProficient},
		{90, LevelMastered},
		{100, LevelMastered},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForPercent(tt.percent), "percent=%d", tt.percent)
	}
}

func TestTrendFor_Band(t *testing.T) {
	// Changes within the ±5 band are stable, including the band edges
	assert.Equal(t, TrendStable, TrendFor(50, 50))
	assert.Equal(t, TrendStable, TrendFor(50, 55))
	assert.Equal(t, TrendStable, TrendFor(50, 45))

	assert.Equal(t, TrendImproving, TrendFor(50, 56))
	assert.Equal(t, TrendDeclining, TrendFor(50, 44))

	assert.Equal(t, TrendImproving, TrendFor(0, 100))
	assert.Equal(t, TrendDeclining, TrendFor(100, 0))
}

func TestComputePercent_Rounding(t *testing.T) {
	assert.Equal(t, 0, computePercent(0, 0))
	assert.Equal(t, 0, computePercent(0, 3))
	assert.Equal(t, 100, computePercent(3, 3))

	// 2/5 = 40%, 4/7 = 57.14% rounds to 57, 1/3 = 33.33% rounds to 33
	assert.Equal(t, 40, computePercent(2, 5))
	assert.Equal(t, 57, computePercent(4, 7))
	assert.Equal(t, 33, computePercent(1, 3))

	// 1/6 = 16.67% rounds up to 17
	assert.Equal(t, 17, computePercent(1, 6))
}
