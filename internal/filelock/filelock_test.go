package filelock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadersConcurrent(t *testing.T) {
	tbl := New()
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := tbl.LockRead("p")
			defer g.Release()
			n := atomic.AddInt32(&active, 1)
			if n > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, n)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	require.Greater(t, maxActive, int32(1))
}

func TestWriterExcludesReaders(t *testing.T) {
	tbl := New()
	var order []string
	var mu sync.Mutex

	wg := tbl.LockWrite("p")
	done := make(chan struct{})
	go func() {
		g := tbl.LockRead("p")
		mu.Lock()
		order = append(order, "read")
		mu.Unlock()
		g.Release()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	require.Empty(t, order)
	mu.Unlock()

	wg.Release()
	<-done

	mu.Lock()
	require.Equal(t, []string{"read"}, order)
	mu.Unlock()
}

func TestLockRenameDeterministicOrder(t *testing.T) {
	tbl := New()
	release := tbl.LockRename("b", "a")
	// should have locked "a" then "b"
	done := make(chan struct{})
	go func() {
		r2 := tbl.LockRename("a", "b")
		r2()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second rename lock acquired while first still held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	<-done
}

func TestEntryPrunedWhenIdle(t *testing.T) {
	tbl := New()
	g := tbl.LockWrite("p")
	g.Release()
	tbl.mu.Lock()
	_, exists := tbl.entries["p"]
	tbl.mu.Unlock()
	require.False(t, exists)
}
