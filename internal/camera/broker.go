package camera

import (
	"sync"

	"github.com/smazurov/camerahost/internal/capture"
	"github.com/smazurov/camerahost/internal/logging"
	"github.com/smazurov/camerahost/internal/metrics"
)

// SinkBroker owns the single frame sink. Transports attach and detach it;
// a streaming session claims it and later releases it. Sinks are compared
// by identity, so implementations must be comparable (pointers).
type SinkBroker struct {
	mu       sync.Mutex
	attached capture.FrameSink
	claimed  bool
	closed   bool
	logger   logging.Logger
}

// NewSinkBroker returns a broker with no sink attached.
func NewSinkBroker() *SinkBroker {
	return &SinkBroker{logger: logging.GetLogger("camera").With("component", "broker")}
}

// Attach makes sink the current sink. If the previous sink is claimed by a
// session, the broker forgets it: the session keeps pushing to its own
// reference until the stream stops, and its later Release is discarded.
func (b *SinkBroker) Attach(sink capture.FrameSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		b.logger.Debug("Attach after close ignored")
		return
	}
	b.attached = sink
	b.setClaimed(false)
}

// Detach removes and returns the current sink, claimed or not.
func (b *SinkBroker) Detach() capture.FrameSink {
	b.mu.Lock()
	defer b.mu.Unlock()
	sink := b.attached
	b.attached = nil
	b.setClaimed(false)
	return sink
}

// DetachSink detaches sink only if it is the current sink.
func (b *SinkBroker) DetachSink(sink capture.FrameSink) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached == nil || b.attached != sink {
		return false
	}
	b.attached = nil
	b.setClaimed(false)
	return true
}

// Claim hands the current sink to a session. It fails when no sink is
// attached, the sink is already claimed or the broker is closed.
func (b *SinkBroker) Claim() (capture.FrameSink, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.attached == nil || b.claimed {
		return nil, false
	}
	b.setClaimed(true)
	return b.attached, true
}

// Release returns a claimed sink. A sink the broker no longer holds
// (detached or replaced meanwhile) is discarded.
func (b *SinkBroker) Release(sink capture.FrameSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sink == nil || b.attached == nil || b.attached != sink {
		b.logger.Debug("Discarding released sink no longer attached")
		return
	}
	b.setClaimed(false)
}

// Claimed reports whether a session currently holds the sink.
func (b *SinkBroker) Claimed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.claimed
}

// Attached reports whether a sink is attached.
func (b *SinkBroker) Attached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached != nil
}

// Close drops the sink. Later Attach and Claim calls have no effect.
func (b *SinkBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.attached = nil
	b.setClaimed(false)
}

func (b *SinkBroker) setClaimed(claimed bool) {
	b.claimed = claimed
	metrics.SetSinkClaimed(claimed)
}
