package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p := New(0, 0)
	assert.Equal(t, runtime.GOMAXPROCS(0), p.Workers())
	assert.Zero(t, p.Timeout())
	assert.Equal(t, 3, New(3, time.Second).Workers())
}

func TestDo(t *testing.T) {
	p := New(2, time.Second)
	v, err := Do(context.Background(), p, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	err = p.Run(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRun_Timeout(t *testing.T) {
	p := New(1, 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := p.Run(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRun_Canceled(t *testing.T) {
	p := New(1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestRun_Bounded(t *testing.T) {
	p := New(2, 0)
	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Run(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestRun_WaitingForSlotTimesOut(t *testing.T) {
	p := New(1, 30*time.Millisecond)
	hold := make(chan struct{})
	started := make(chan struct{})
	go p.Run(context.Background(), func(context.Context) error {
		close(started)
		<-hold
		return nil
	})
	<-started

	err := p.Run(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrTimeout)
	close(hold)
}
