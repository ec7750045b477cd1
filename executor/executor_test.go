package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostOrdering(t *testing.T) {
	e := New("test", nil)
	defer e.Shutdown()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	e.Post(func() { mu.Lock(); order = append(order, "first"); mu.Unlock() })
	e.Post(func() { mu.Lock(); order = append(order, "second"); mu.Unlock() })
	e.Post(func() {
		mu.Lock()
		order = append(order, "third")
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for posted tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestImmediateRunsBeforeMaturingDelayed(t *testing.T) {
	e := New("test", nil)
	defer e.Shutdown()

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	e.PostDelayed(func() {
		mu.Lock()
		order = append(order, "delayed")
		mu.Unlock()
	}, time.Second)
	e.Post(func() { mu.Lock(); order = append(order, "immediate-1"); mu.Unlock() })
	e.Post(func() {
		mu.Lock()
		order = append(order, "immediate-2")
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, []string{"immediate-1", "immediate-2"}, order)
}

func TestCancelledDelayedNeverRuns(t *testing.T) {
	e := New("test", nil)
	defer e.Shutdown()

	ran := false
	h := e.PostDelayed(func() { ran = true }, 30*time.Millisecond)
	h.Cancel()

	marker := make(chan struct{})
	e.PostDelayed(func() { close(marker) }, 80*time.Millisecond)
	<-marker

	assert.False(t, ran)
}

func TestShutdownRejectsNewWork(t *testing.T) {
	e := New("test", nil)
	e.Shutdown()

	ran := false
	e.Post(func() { ran = true })
	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran)
}

func TestPanicDoesNotPoisonExecutor(t *testing.T) {
	e := New("test", nil)
	defer e.Shutdown()

	e.Post(func() { panic("boom") })

	done := make(chan struct{})
	e.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("executor did not recover from panic")
	}
}
