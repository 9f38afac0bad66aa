package keylock_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/otafleet/otafleet/internal/keylock"
)

func TestMutex_SerializesSameKey(t *testing.T) {
	m := keylock.New()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("device-1")
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				cur := atomic.LoadInt32(&maxActive)
				if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, m.Len(), "entries are released once unused")
}

func TestMutex_DifferentKeysDoNotBlock(t *testing.T) {
	m := keylock.New()

	unlockA := m.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := m.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind lock on a")
	}
}

func TestMutex_UnlockIsIdempotent(t *testing.T) {
	m := keylock.New()

	unlock := m.Lock("a")
	unlock()
	unlock()

	assert.Equal(t, 0, m.Len())

	relock := m.Lock("a")
	relock()
}

func TestMutex_LockAllDeduplicates(t *testing.T) {
	m := keylock.New()

	unlock := m.LockAll([]string{"b", "a", "b"})
	assert.Equal(t, 2, m.Len())
	unlock()
	assert.Equal(t, 0, m.Len())
}
