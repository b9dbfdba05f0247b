package shutdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTriggerFiresOnce(t *testing.T) {
	tr := New()
	assert.False(t, tr.Fired())

	select {
	case <-tr.Done():
		t.Fatal("done closed before Fire")
	default:
	}

	assert.True(t, tr.Fire())
	assert.False(t, tr.Fire())
	assert.True(t, tr.Fired())

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("done not closed after Fire")
	}
}

func TestTriggerConcurrentFire(t *testing.T) {
	tr := New()

	var delivered atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Fire() {
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), delivered.Load())
}
