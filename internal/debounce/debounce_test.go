package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testWindow = 50 * time.Millisecond

func TestDebounce_LastCallWins(t *testing.T) {
	d := New(testWindow)
	defer d.Stop()

	var mu sync.Mutex
	var ran []string
	done := make(chan struct{})

	d.Debounce("k", func() {
		mu.Lock()
		ran = append(ran, "a")
		mu.Unlock()
	})
	time.Sleep(testWindow / 5)
	d.Debounce("k", func() {
		mu.Lock()
		ran = append(ran, "b")
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("action b did not run")
	}

	// Give a stale timer the chance to misfire.
	time.Sleep(2 * testWindow)

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 1 || ran[0] != "b" {
		t.Errorf("ran = %v, want [b]", ran)
	}
	if d.Superseded() != 1 {
		t.Errorf("Superseded() = %d, want 1", d.Superseded())
	}
}

func TestDebounce_WaitsForQuietWindow(t *testing.T) {
	d := New(testWindow)
	defer d.Stop()

	fired := make(chan time.Time, 1)
	start := time.Now()
	d.Debounce("k", func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if elapsed := at.Sub(start); elapsed < testWindow {
			t.Errorf("fired after %v, want >= %v", elapsed, testWindow)
		}
	case <-time.After(time.Second):
		t.Fatal("action did not run")
	}
}

func TestDebounce_DistinctKeysIndependent(t *testing.T) {
	d := New(testWindow)
	defer d.Stop()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	for _, k := range []string{"a", "b", "c"} {
		d.Debounce(k, func() {
			count.Add(1)
			wg.Done()
		})
	}

	if got := d.Pending(); got != 3 {
		t.Errorf("Pending() = %d, want 3", got)
	}

	waitGroup(t, &wg)
	if got := count.Load(); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
	if got := d.Pending(); got != 0 {
		t.Errorf("Pending() after fire = %d, want 0", got)
	}
}

func TestDebounce_ConcurrentProducers(t *testing.T) {
	d := New(testWindow)
	defer d.Stop()

	var runs atomic.Int32
	var producers sync.WaitGroup
	for i := 0; i < 16; i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for j := 0; j < 20; j++ {
				d.Debounce("shared", func() { runs.Add(1) })
			}
		}()
	}
	producers.Wait()

	time.Sleep(4 * testWindow)
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestStop_CancelsPending(t *testing.T) {
	d := New(testWindow)

	var runs atomic.Int32
	d.Debounce("k", func() { runs.Add(1) })
	d.Stop()
	d.Debounce("k2", func() { runs.Add(1) })

	time.Sleep(3 * testWindow)
	if got := runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0 after Stop", got)
	}
	if got := d.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestNew_DefaultWindow(t *testing.T) {
	if got := New(0).Window(); got != DefaultWindow {
		t.Errorf("New(0).Window() = %v, want %v", got, DefaultWindow)
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for actions")
	}
}
