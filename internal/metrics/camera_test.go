package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStreamStatsCache(t *testing.T) {
	const id = 901
	DeleteStreamMetrics(id)

	if s := GetStreamStats(id); s != nil {
		t.Fatal("expected nil stats for unknown camera")
	}

	FrameDelivered(id)
	FrameDelivered(id)
	FrameDropped(id)

	s := GetStreamStats(id)
	if s == nil {
		t.Fatal("expected stats")
	}
	if s.Delivered != 2 || s.Dropped != 1 {
		t.Errorf("got delivered=%d dropped=%d, want 2 and 1", s.Delivered, s.Dropped)
	}
	if s.LastFrame.IsZero() {
		t.Error("LastFrame not set")
	}

	s.Delivered = 100
	if again := GetStreamStats(id); again.Delivered != 2 {
		t.Errorf("cache modified through copy, Delivered = %d", again.Delivered)
	}

	if got := testutil.ToFloat64(framesDelivered.WithLabelValues("901")); got != 2 {
		t.Errorf("frames_delivered_total = %v, want 2", got)
	}

	DeleteStreamMetrics(id)
	if GetStreamStats(id) != nil {
		t.Error("expected nil after delete")
	}
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(cameraOperations.WithLabelValues("takePicture", "success"))
	ObserveOperation("takePicture", "success", 15*time.Millisecond)
	ObserveOperation("takePicture", "conflict_error", time.Millisecond)

	if got := testutil.ToFloat64(cameraOperations.WithLabelValues("takePicture", "success")); got != before+1 {
		t.Errorf("operations_total{success} = %v, want %v", got, before+1)
	}
	if testutil.CollectAndCount(cameraOperationDuration) == 0 {
		t.Error("expected duration histogram series")
	}
}

func TestGauges(t *testing.T) {
	SetSessions(3)
	SetPending(2)
	SetSinkClaimed(true)

	if got := testutil.ToFloat64(cameraSessions); got != 3 {
		t.Errorf("sessions = %v, want 3", got)
	}
	if got := testutil.ToFloat64(cameraPending); got != 2 {
		t.Errorf("pending = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sinkClaimed); got != 1 {
		t.Errorf("sink_claimed = %v, want 1", got)
	}

	SetSinkClaimed(false)
	if got := testutil.ToFloat64(sinkClaimed); got != 0 {
		t.Errorf("sink_claimed = %v, want 0", got)
	}
}

func TestFrameCountersConcurrent(t *testing.T) {
	const id = 902
	DeleteStreamMetrics(id)
	defer DeleteStreamMetrics(id)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				FrameDelivered(id)
			}
		}()
	}
	wg.Wait()

	if s := GetStreamStats(id); s == nil || s.Delivered != 1000 {
		t.Errorf("stats = %+v, want 1000 delivered", s)
	}
}
