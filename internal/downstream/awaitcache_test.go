package downstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAwaitCacheSetThenAwait(t *testing.T) {
	c := NewAwaitCache[string, int]()
	c.Set("a", 42)
	v, ok := c.Get("a").Await(context.Background().Done())
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestAwaitCacheAwaitBlocksUntilSet(t *testing.T) {
	c := NewAwaitCache[string, int]()
	entry := c.Get("a")

	done := make(chan int, 1)
	go func() {
		v, _ := entry.Await(context.Background().Done())
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	c.Set("a", 7)

	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("Await never returned after Set")
	}
}

func TestAwaitCacheAwaitRespectsCancellation(t *testing.T) {
	c := NewAwaitCache[string, int]()
	entry := c.Get("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := entry.Await(ctx.Done())
	assert.False(t, ok)
}

func TestAwaitCacheDelete(t *testing.T) {
	c := NewAwaitCache[string, int]()
	c.Set("a", 1)
	c.Delete("a")
	entry := c.Get("a")
	assert.False(t, entry.IsReady())
}
