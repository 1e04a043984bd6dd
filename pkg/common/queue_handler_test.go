package common

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueHandlerProcessesInChunks(t *testing.T) {
	var mu sync.Mutex
	var batches [][]int
	q := NewQueueHandler(func(items []int) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, append([]int(nil), items...))
	}, 2, time.Hour)

	q.Add(1, 2, 3)
	q.Add(4, 5)
	assert.Equal(t, 5, q.Len())
	q.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, batches)
	assert.Equal(t, 0, q.Len())
}

func TestQueueHandlerFlushesOnTick(t *testing.T) {
	got := make(chan []string, 1)
	q := NewQueueHandler(func(items []string) {
		got <- items
	}, 10, 10*time.Millisecond)
	defer q.Close()

	q.Add("a")
	select {
	case items := <-got:
		assert.Equal(t, []string{"a"}, items)
	case <-time.After(2 * time.Second):
		t.Fatal("queue was never processed")
	}
}

func TestQueueHandlerCloseTwice(t *testing.T) {
	q := NewQueueHandler(func(items []int) {}, 1, time.Hour)
	q.Close()
	q.Close()
}
