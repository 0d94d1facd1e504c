package camera

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/smazurov/camerahost/internal/capture"
)

type memorySink struct {
	mu     sync.Mutex
	frames []capture.Frame
	err    error
}

func (s *memorySink) Push(frame capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func TestSinkBrokerClaimRelease(t *testing.T) {
	b := NewSinkBroker()

	if _, ok := b.Claim(); ok {
		t.Fatal("Claim succeeded with no sink attached")
	}

	sink := &memorySink{}
	b.Attach(sink)

	got, ok := b.Claim()
	if !ok || got != capture.FrameSink(sink) {
		t.Fatalf("Claim = %v, %v", got, ok)
	}
	if !b.Claimed() {
		t.Error("Claimed = false after Claim")
	}
	if _, ok := b.Claim(); ok {
		t.Error("second Claim succeeded while sink is held")
	}

	b.Release(sink)
	if b.Claimed() {
		t.Error("Claimed = true after Release")
	}
	if _, ok := b.Claim(); !ok {
		t.Error("Claim failed after Release")
	}
}

func TestSinkBrokerReleaseStaleSink(t *testing.T) {
	b := NewSinkBroker()
	old, replacement := &memorySink{}, &memorySink{}

	b.Attach(old)
	if _, ok := b.Claim(); !ok {
		t.Fatal("Claim failed")
	}

	b.Attach(replacement)
	if b.Claimed() {
		t.Error("Attach must forget the claimed sink")
	}

	b.Release(old)
	got, ok := b.Claim()
	if !ok || got != capture.FrameSink(replacement) {
		t.Errorf("Claim = %v, %v, want the replacement sink", got, ok)
	}

	// The replacement is claimed, releasing the stale one must not free it.
	b.Release(old)
	if !b.Claimed() {
		t.Error("stale Release freed the current sink")
	}
}

func TestSinkBrokerDetach(t *testing.T) {
	b := NewSinkBroker()
	mine, other := &memorySink{}, &memorySink{}

	b.Attach(mine)
	if b.DetachSink(other) {
		t.Error("DetachSink detached a sink that was not attached")
	}
	if !b.Attached() {
		t.Fatal("sink lost")
	}
	if !b.DetachSink(mine) {
		t.Error("DetachSink(mine) = false")
	}
	if b.Attached() {
		t.Error("still attached after DetachSink")
	}

	b.Attach(other)
	if got := b.Detach(); got != capture.FrameSink(other) {
		t.Errorf("Detach = %v, want other", got)
	}
	if got := b.Detach(); got != nil {
		t.Errorf("second Detach = %v, want nil", got)
	}
}

func TestSinkBrokerClose(t *testing.T) {
	b := NewSinkBroker()
	sink := &memorySink{}
	b.Attach(sink)
	b.Close()

	if b.Attached() {
		t.Error("sink attached after Close")
	}
	b.Attach(sink)
	if _, ok := b.Claim(); ok {
		t.Error("Claim succeeded after Close")
	}
}

func TestSinkBrokerClaimedGauge(t *testing.T) {
	b := NewSinkBroker()
	sink := &memorySink{}
	b.Attach(sink)

	b.Claim()
	assertSinkClaimed(t, 1)
	b.Release(sink)
	assertSinkClaimed(t, 0)
}

func assertSinkClaimed(t *testing.T, want int) {
	t.Helper()
	expected := fmt.Sprintf(`
# HELP camerahost_stream_sink_claimed 1 while a session holds the frame sink
# TYPE camerahost_stream_sink_claimed gauge
camerahost_stream_sink_claimed %d
`, want)
	err := testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected), "camerahost_stream_sink_claimed")
	if err != nil {
		t.Error(err)
	}
}
