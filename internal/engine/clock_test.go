package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/testutil"
)

func TestClock_StartsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), NewClock().Current())
	assert.Equal(t, int64(40), NewClockAt(40).Current())
}

func TestClock_NextIncrementsBeforeReturning(t *testing.T) {
	c := NewClock()

	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const goroutines, calls = 50, 100

	var wg sync.WaitGroup
	seqs := make(chan int64, goroutines*calls)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d stamped twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*calls)
}

func TestWithClock_ContinuesExistingSequence(t *testing.T) {
	cat := testutil.Catalog(t, nil, []catalog.Order{testutil.Order("O1", 0)}, nil)
	e := NewEngine(cat, WithClock(NewClockAt(100)))

	_, rep, err := e.Initialize(0)
	require.NoError(t, err)
	require.NotEmpty(t, rep.Events)
	assert.Equal(t, int64(101), rep.Events[0].Seq)
	assert.Equal(t, e.Clock().Current(), rep.Events[len(rep.Events)-1].Seq)
}
