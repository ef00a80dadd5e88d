package seed

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/goat/pkg/tile"
)

func TestNextKeepsExplicitSeed(t *testing.T) {
	h := NewHistory(rand.NewPCG(1, 2))

	got, err := h.Next(5, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got)
	assert.Equal(t, []int64{5, 0, 0, 0}, h.Seeds())
	assert.EqualValues(t, 5, h.Current())
}

func TestNextReusesHistory(t *testing.T) {
	h := NewHistory(rand.NewPCG(1, 2))
	_, err := h.Next(5, false)
	require.NoError(t, err)

	// generateNew does not apply to a remembered seed
	got, err := h.Next(5, true)
	require.NoError(t, err)
	assert.EqualValues(t, 5, got)
	assert.Equal(t, []int64{5, 0, 0, 0}, h.Seeds())

	got, err = h.Next(0, true)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)
}

func TestNextDrawsFreshSeeds(t *testing.T) {
	h := NewHistory(rand.NewPCG(7, 7))
	want := rand.New(rand.NewPCG(7, 7))

	got, err := h.Next(Random, false)
	require.NoError(t, err)
	assert.Equal(t, want.Int64N(MaxSeed+1), got)

	got2, err := h.Next(123, true)
	require.NoError(t, err)
	assert.Equal(t, want.Int64N(MaxSeed+1), got2)

	assert.Equal(t, []int64{got2, got, 0, 0}, h.Seeds())
}

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory(nil)
	for _, s := range []int64{1, 2, 3, 4, 5, 6} {
		_, err := h.Next(s, false)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{6, 5, 4, 3}, h.Seeds())

	for i := 0; i < 20; i++ {
		got, err := h.Next(Random, true)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, int64(0))
		assert.LessOrEqual(t, got, int64(MaxSeed))
		assert.Len(t, h.Seeds(), HistorySize)
	}
}

func TestNextRejectsOutOfRange(t *testing.T) {
	h := NewHistory(nil)
	for _, s := range []int64{-2, MaxSeed + 1} {
		_, err := h.Next(s, false)
		assert.ErrorIs(t, err, tile.ErrInvalidConfig)
	}
	assert.EqualValues(t, Random, h.Current())
}

func TestNextConcurrent(t *testing.T) {
	h := NewHistory(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := h.Next(int64(i*100+j), false)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, h.Seeds(), HistorySize)
}
