package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpinPull/internal/domain/models"
)

func TestExtractNeedsFivePriorSpins(t *testing.T) {
	_, ok := Extract([]int{1, 2, 3, 4}, 5, time.Now())
	assert.False(t, ok)
}

func TestExtractShortHistory(t *testing.T) {
	ts := time.Date(2024, 5, 1, 13, 45, 0, 0, time.Local)
	f, ok := Extract([]int{7, 0, 32, 11, 2}, 17, ts)
	require.True(t, ok)

	assert.Equal(t, 17.0, f.CurrentNumber)
	assert.Equal(t, []float64{7, 0, 32}, []float64{f.Last1, f.Last2, f.Last3})
	assert.Equal(t, 2.0, f.RedCount10)
	assert.Equal(t, 2.0, f.BlackCount10)
	assert.Equal(t, 1.0, f.GreenCount10)
	assert.Zero(t, f.MeanLast10)
	assert.Zero(t, f.StdLast10)
	assert.Equal(t, 20.0, f.GapSinceLast)
	assert.Equal(t, 2.0, f.EvenCount10)
	assert.Equal(t, 2.0, f.OddCount10)
	assert.Equal(t, 13.0, f.Hour)
	assert.Equal(t, 45.0, f.Minute)
}

func TestExtractFullWindow(t *testing.T) {
	prior := []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 5}
	f, ok := Extract(prior, 10, time.Unix(0, 0))
	require.True(t, ok)

	assert.InDelta(t, 11.0, f.MeanLast10, 1e-9)
	assert.InDelta(t, 5.744562646538029, f.StdLast10, 1e-9)
	assert.Equal(t, 4.0, f.GapSinceLast)
	assert.Equal(t, 10.0, f.EvenCount10)
	assert.Zero(t, f.OddCount10)
	total := f.SectorVoisinsZeroCount10 + f.SectorTiersCount10 + f.SectorOrphelinsCount10
	assert.Equal(t, 10.0, total)
}

func TestExtractIsPure(t *testing.T) {
	prior := []int{3, 26, 0, 32, 15, 19, 4, 21, 2, 25}
	ts := time.Unix(1700000000, 0)
	a, _ := Extract(prior, 3, ts)
	b, _ := Extract(prior, 3, ts)
	assert.Equal(t, a.Values(), b.Values())
	assert.Len(t, a.Values(), len(models.FeatureNames))
}
