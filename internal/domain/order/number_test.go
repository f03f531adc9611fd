package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberGenerator_Format(t *testing.T) {
	gen := NewNumberGenerator("PZA", NewMemorySequence())
	at := time.Date(2026, 8, 31, 14, 5, 0, 0, time.UTC)

	first, err := gen.Next(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, "PZA2608310001", first)

	second, err := gen.Next(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, "PZA2608310002", second)
}

func TestNumberGenerator_ResetsAtDayBoundary(t *testing.T) {
	gen := NewNumberGenerator("PZA", NewMemorySequence())
	day1 := time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 9, 1, 0, 1, 0, 0, time.UTC)

	_, err := gen.Next(context.Background(), day1)
	require.NoError(t, err)

	next, err := gen.Next(context.Background(), day2)
	require.NoError(t, err)
	assert.Equal(t, "PZA2609010001", next)
}

func TestNumberGenerator_ConcurrentUnique(t *testing.T) {
	gen := NewNumberGenerator("PZA", NewMemorySequence())
	at := time.Now().UTC()

	const n = 200
	var (
		mu      sync.Mutex
		numbers = make(map[string]struct{}, n)
		wg      sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := gen.Next(context.Background(), at)
			assert.NoError(t, err)
			mu.Lock()
			numbers[number] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, n, "duplicate order numbers minted")
}

func TestNumberGenerator_SequenceOverflowGrowsDigits(t *testing.T) {
	seq := NewMemorySequence()
	gen := NewNumberGenerator("PZA", seq)
	at := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	seq.day = at.Truncate(24 * time.Hour)
	seq.next = 9999
	number, err := gen.Next(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, "PZA26010210000", number)
}
