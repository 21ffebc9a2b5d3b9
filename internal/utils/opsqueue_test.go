package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpsQueue_Order(t *testing.T) {
	oq := NewOpsQueue(zap.NewNop(), "test")
	oq.Start()

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 1000; i++ {
		i := i
		require.True(t, oq.Enqueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	oq.Stop()

	select {
	case <-oq.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("queue did not drain")
	}

	require.Len(t, got, 1000)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestOpsQueue_StopIdempotent(t *testing.T) {
	oq := NewOpsQueue(zap.NewNop(), "test")
	oq.Start()
	oq.Stop()
	oq.Stop()
	<-oq.Done()

	require.False(t, oq.Enqueue(func() {}))
}

func TestOpsQueue_StopBeforeStart(t *testing.T) {
	oq := NewOpsQueue(zap.NewNop(), "test")
	oq.Stop()
	<-oq.Done()
	oq.Start()
	require.False(t, oq.Enqueue(func() {}))
}

func TestOpsQueue_PanicDoesNotKillWorker(t *testing.T) {
	oq := NewOpsQueue(zap.NewNop(), "test")
	oq.Start()
	defer oq.Stop()

	ran := make(chan struct{})
	oq.Enqueue(func() { panic("boom") })
	oq.Enqueue(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("op after panic did not run")
	}
}
