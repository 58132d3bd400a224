package mailbox

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newTestDispatcher() *Dispatcher {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSameOwnerRunsInOrder(t *testing.T) {
	d := newTestDispatcher()

	var mu sync.Mutex
	var got []int
	var running, overlap atomic.Int32
	for i := 0; i < 50; i++ {
		d.Submit(1, func() {
			if running.Add(1) > 1 {
				overlap.Add(1)
			}
			time.Sleep(100 * time.Microsecond)
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			running.Add(-1)
		})
	}
	d.Wait()

	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if overlap.Load() != 0 {
		t.Errorf("jobs for one owner overlapped %d times", overlap.Load())
	}
	if d.Active() != 0 {
		t.Errorf("active queues = %d after drain", d.Active())
	}
}

func TestOwnersRunInParallel(t *testing.T) {
	d := newTestDispatcher()

	started := make(chan struct{})
	release := make(chan struct{})
	d.Submit(1, func() {
		close(started)
		<-release
	})
	<-started

	done := make(chan struct{})
	d.Submit(2, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("owner 2 blocked by owner 1")
	}
	close(release)
	d.Wait()
}

func TestPanicDoesNotStopQueue(t *testing.T) {
	d := newTestDispatcher()

	var ran atomic.Bool
	d.Submit(3, func() { panic("boom") })
	d.Submit(3, func() { ran.Store(true) })
	d.Wait()

	if !ran.Load() {
		t.Error("job after panic did not run")
	}
}
