package chain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	c := NewManual(100)
	assert.Equal(t, uint64(100), c.Now())

	assert.Equal(t, uint64(105), c.Advance(5))
	assert.Equal(t, uint64(105), c.Now())

	c.Set(200)
	assert.Equal(t, uint64(200), c.Now())

	// Heights never move backwards
	c.Set(50)
	assert.Equal(t, uint64(200), c.Now())
}

func TestTicker(t *testing.T) {
	c := NewTicker(10, 5*time.Millisecond)
	assert.Equal(t, uint64(10), c.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for c.Now() == 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Greater(t, c.Now(), uint64(10))
}

func TestTickerOnAdvance(t *testing.T) {
	c := NewTicker(10, 5*time.Millisecond)

	var mu sync.Mutex
	var seen []uint64
	c.OnAdvance(func(h uint64) {
		mu.Lock()
		seen = append(seen, h)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if assert.GreaterOrEqual(t, len(seen), 2) {
		assert.Equal(t, uint64(11), seen[0])
		assert.Equal(t, seen[0]+1, seen[1])
	}
}
