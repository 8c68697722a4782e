package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(40, 0))
	assert.Equal(t, 0.0, Rate(40, -30))
	assert.InDelta(t, 0.1, Rate(60, 600), 1e-12)
}

func TestRawProjection(t *testing.T) {
	assert.Equal(t, 100.0, RawProjection(50, 600, 1200))
	assert.Equal(t, 0.0, RawProjection(50, 0, 1200))
	// 37/410*1200 = 108.29...
	assert.Equal(t, 108.3, RawProjection(37, 410, 1200))
}

func TestSeriesProjection(t *testing.T) {
	_, ok := SeriesProjection(nil, 1200)
	assert.False(t, ok)

	got, ok := SeriesProjection(Series{0.1, 0.2}, 1200)
	require.True(t, ok)
	assert.InDelta(t, 180.0, got, 1e-9)

	s := Series{0.081, 0.085, 0.09}
	mean, _ := s.Mean()
	got, _ = SeriesProjection(s, 2880)
	assert.Equal(t, Round1(mean*2880), got)
}

func TestSeriesProjection_SingleSampleMatchesRaw(t *testing.T) {
	score, played, game := 47, 530, 1200
	s := Append(nil, Rate(score, played))

	got, ok := SeriesProjection(s, game)
	require.True(t, ok)
	assert.Equal(t, RawProjection(score, played, game), got)
}

func TestAppend_KeepsHistory(t *testing.T) {
	var s Series
	for i := 0; i < 20; i++ {
		s = Append(s, float64(i))
	}
	require.Len(t, s, 20)
	assert.Equal(t, 0.0, s[0])
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 19.0, last)
}

func TestBlend(t *testing.T) {
	assert.Equal(t, 103.0, Blend(110, 100, 0.3))
	assert.Equal(t, 100.0, Blend(110, 100, 0))
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 12.4, Round1(12.36))
	assert.Equal(t, -12.4, Round1(-12.36))
	assert.Equal(t, 104.5, RoundHalf(104.4))
	assert.Equal(t, 105.0, RoundHalf(104.8))
}
